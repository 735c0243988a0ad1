// Package httpapi exposes the click service over HTTP with gin.
//
// POST /click records one click. The body is
//
//	{"userId": "u1", "socialMediaType": "instagram"}
//
// and a successful response is
//
//	{"success": true, "message": "Click recorded",
//	 "data": {"userId": "u1", "createDateTime": "2025-10-02T08:00:00.000Z", "totalClicks": 42}}
//
// Failures answer {"success": false, "message": ..., "error": ...} with 400
// for invalid input and 500 for store failures. Every response carries
// permissive CORS headers, and OPTIONS preflight requests answer 204.
//
// Read endpoints return the same envelope:
//
//	GET /stats/total
//	GET /stats/daily/:date
//	GET /stats/monthly/:month
//	GET /users/:userId/clicks?from=&to=
//	GET /dates/:date/clicks
package httpapi
