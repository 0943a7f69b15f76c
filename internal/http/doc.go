// Package http exposes the booking and room services over a chi router.
//
// Endpoints, also served under the /api prefix:
//   - GET /bookings: bookings visible to the caller. Managers see every
//     booking, everyone else their own. Requires a bearer token.
//   - POST /bookings: admits a booking. Body: {"roomId","startTime","endTime"}
//     with RFC 3339 times. 201 with the booking and its room.
//   - DELETE /bookings/{id}: owners may delete their future bookings, managers
//     any booking. Response: {"success","message"}.
//   - GET /rooms, GET /rooms/{id}: public room catalog with bookings.
//   - POST /rooms, PATCH /rooms/{id}, DELETE /rooms/{id}: manager only.
//     Body: {"name","capacity"}; PATCH accepts either field.
//   - GET /healthz, GET /readyz, GET /metrics.
//
// Errors are JSON objects {"error_code","message","errors"} where errors maps
// field names to messages for validation failures.
package http
