// Package api provides the REST client for the order service.
//
// Endpoints:
//   - GET /orders/batch?ids=a,b,c  bulk read (optional; 404/405/501 mean unsupported)
//   - GET /orders/{id}             point read
//   - GET /orders?status=&search=&sort=&page=&page_size=  list, backs the query cache
//
// Every request carries the session's bearer credential.
package api
