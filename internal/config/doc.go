// Package config resolves deployctl's configuration.
//
// Three sources are combined, highest precedence first:
//
//   - the process environment set by the hosting platform, read with
//     github.com/caarlos0/env (PORT, DEPLOYCTL_*)
//   - an optional dotenv file (github.com/subosito/gotenv), whose keys are
//     only added when the platform did not set them
//   - an optional deploy file (deploy.yaml / deploy.jsonc) overriding the
//     default build steps and start command
//
// The result is a model.BuildPlan or model.StartPlan ready for the
// sequencers. Variables outside Settings are never parsed; they pass
// through to child processes as-is.
package config
