// Package core owns the credential lifecycle: API credentials held by client
// applications, single-use verification credentials issued on their behalf,
// and the orchestration that issues, delivers, confirms and deletes them.
// Storage, notification transports and HTTP adapters depend on this package;
// core must not depend on them.
package core
