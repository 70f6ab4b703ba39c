// Package blobstore addresses Azure Blob Storage objects and builds clients
// for them. The source reader and the warehouse staging area share it.
package blobstore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// DefaultSuffix is the public-cloud blob host suffix.
const DefaultSuffix = "blob.core.windows.net"

// Location is a blob (or blob prefix) in a storage account.
type Location struct {
	Account   string
	Container string
	// Path is the blob name, or a prefix for staging areas. No leading slash.
	Path string
	// Endpoint is the service URL, e.g. https://acct.blob.core.windows.net/.
	Endpoint string
}

// ServiceURL returns the account endpoint.
func (l Location) ServiceURL() string {
	if l.Endpoint != "" {
		return strings.TrimRight(l.Endpoint, "/") + "/"
	}
	return fmt.Sprintf("https://%s.%s/", l.Account, DefaultSuffix)
}

// URL returns the https URL of the blob or prefix.
func (l Location) URL() string {
	u := l.ServiceURL() + l.Container
	if l.Path != "" {
		u += "/" + l.Path
	}
	return u
}

// Wasbs returns the Hadoop-style address, used by warehouse COPY statements
// and in logs.
func (l Location) Wasbs() string {
	host := strings.TrimPrefix(strings.TrimPrefix(strings.TrimRight(l.ServiceURL(), "/"), "https://"), "http://")
	return fmt.Sprintf("wasbs://%s@%s/%s", l.Container, host, l.Path)
}

// Join returns a copy of l with elem appended to Path.
func (l Location) Join(elem ...string) Location {
	parts := []string{}
	if p := strings.Trim(l.Path, "/"); p != "" {
		parts = append(parts, p)
	}
	for _, e := range elem {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	l.Path = strings.Join(parts, "/")
	return l
}

// ParseURL accepts
//
//	wasbs://<container>@<account>.blob.core.windows.net/<path>
//	wasb://...      (same, plain http transport is upgraded to https)
//	https://<account>.blob.core.windows.net/<container>/<path>
//
// and returns the Location.
func ParseURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("blobstore: parse %q: %w", raw, err)
	}
	switch u.Scheme {
	case "wasbs", "wasb":
		if u.User == nil || u.User.Username() == "" {
			return Location{}, fmt.Errorf("blobstore: %q has no container", raw)
		}
		container := u.User.Username()
		account, _, _ := strings.Cut(u.Host, ".")
		if account == "" {
			return Location{}, fmt.Errorf("blobstore: %q has no account", raw)
		}
		return Location{
			Account:   account,
			Container: container,
			Path:      strings.TrimPrefix(u.Path, "/"),
			Endpoint:  "https://" + u.Host + "/",
		}, nil
	case "https", "http":
		parts, err := azblob.ParseURL(raw)
		if err != nil {
			return Location{}, fmt.Errorf("blobstore: parse %q: %w", raw, err)
		}
		if parts.ContainerName == "" {
			return Location{}, fmt.Errorf("blobstore: %q has no container", raw)
		}
		loc := Location{
			Container: parts.ContainerName,
			Path:      parts.BlobName,
		}
		if parts.IPEndpointStyleInfo.AccountName != "" {
			// emulator style: http://127.0.0.1:10000/devstoreaccount1/container/blob
			loc.Account = parts.IPEndpointStyleInfo.AccountName
			loc.Endpoint = fmt.Sprintf("%s://%s/%s/", u.Scheme, u.Host, loc.Account)
		} else {
			loc.Account, _, _ = strings.Cut(u.Host, ".")
			loc.Endpoint = fmt.Sprintf("%s://%s/", u.Scheme, u.Host)
		}
		return loc, nil
	default:
		return Location{}, fmt.Errorf("blobstore: unsupported scheme %q in %q", u.Scheme, raw)
	}
}

// newDefaultCredential is replaced in tests.
var newDefaultCredential = func() (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}

// NewClient builds a client for loc's account. A non-empty accountKey uses
// shared key auth; otherwise the DefaultAzureCredential chain (environment,
// workload identity, managed identity, Azure CLI) is used.
func NewClient(loc Location, accountKey string) (*azblob.Client, error) {
	opts := &azblob.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Telemetry: policy.TelemetryOptions{ApplicationID: "taxietl"},
		},
	}
	if accountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(loc.Account, accountKey)
		if err != nil {
			return nil, fmt.Errorf("blobstore: shared key for %s: %w", loc.Account, err)
		}
		return azblob.NewClientWithSharedKeyCredential(loc.ServiceURL(), cred, opts)
	}
	cred, err := newDefaultCredential()
	if err != nil {
		return nil, fmt.Errorf("blobstore: default azure credential: %w", err)
	}
	return azblob.NewClient(loc.ServiceURL(), cred, opts)
}
