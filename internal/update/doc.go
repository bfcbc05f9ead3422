// Package update decides whether a newer release exists for the installed
// version on a chosen release channel.
//
// This package handles:
//   - Parsing and ordering dotted versions with pre-release identifiers
//   - Decoding the "latest release" object or the release list, depending
//     on the channel, into channel-tagged candidates (one per asset)
//   - Selecting the newest candidate above the installed version
//   - Running the fetch/normalize/select sequence under one deadline
//
// The package is isolated from UI and configuration concerns. Callers pass
// the channel as part of each CheckRequest and decide how to present the
// returned Outcome or coded error.
//
// Example usage:
//
//	checker := update.NewChecker("owner", "repo", update.WithTimeout(10*time.Second))
//	outcome, err := checker.Check(ctx, update.CheckRequest{
//	    Channel:        update.ChannelBeta,
//	    CurrentVersion: "1.4.0",
//	})
//	if err != nil {
//	    // errors.IsCode(err, errors.CodeTimeout), CodeFeedFetch, ...
//	}
//	if outcome.UpdateAvailable() {
//	    fmt.Println(outcome.Result.VersionName, outcome.Result.DownloadURL)
//	}
package update
