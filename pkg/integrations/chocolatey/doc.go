// Package chocolatey provides an HTTP client for the Chocolatey package
// registry (NuGet v2 feed).
//
// # Usage
//
//	client := chocolatey.NewClient(chocolatey.DefaultEndpoint, httputil.Policy{})
//	path, err := client.FetchPackage(ctx, "googlechrome", "", workDir)
//
// An empty version asks the registry for the latest release. The returned
// path names the raw .nupkg archive; its manifest carries the concrete
// version.
package chocolatey
