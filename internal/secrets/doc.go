// Package secrets resolves sensitive runtime settings at process start.
// Each required name is looked up across a fixed chain of sources: the hosting
// platform's secret store, the process environment and finally a developer
// .env file. The first non-empty value wins and the result is an immutable
// set of bindings tagged with the source that supplied them.
package secrets
