// Package file persists the application configuration as a TOML file.
//
// The full configuration surface is the typed domain.Config struct;
// this package loads it at startup, writes it back for the CLI's
// config set/reset verbs, and resolves the dotted key names
// (e.g. "workers.count", "hybrid.alpha") those verbs accept.
package file
