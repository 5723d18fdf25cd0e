// Package httpapi assembles the HTTP surface of the authorization
// service: the OAuth2 token endpoint, bearer-guarded tenant-scoped
// resource routes, and the health probe.
//
// Routing uses chi; request logging uses zap. All authorization
// decisions are delegated to tenauth.Engine through middleware.Guard —
// handlers here only read the principal the guard injected and scope
// their data access by its tenant.
package httpapi
