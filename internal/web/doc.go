// Package web exposes the script runner over HTTP.
//
// The JSON API covers listing and uploading scripts, starting and
// stopping runs, reading buffered logs and managing folders and
// favourites. Live run output is streamed as server-sent events:
//
//	runner.Service ──Subscribe──▶ /api/events ──SSE──▶ browser
//
// Sentinel errors from the runner map onto HTTP statuses: an unknown
// script is 404, a duplicate start and a stop without a run are 409.
package web
