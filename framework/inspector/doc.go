// Package inspector serves a read-mostly HTTP view of a container:
//
//	GET  /services?tag=&pattern=&public   effective definitions
//	GET  /services/{id}                   one definition
//	GET  /parameters                      compiled parameters
//	GET  /tags/{tag}                      tagged services, priority order
//	GET  /resolve/{id}                    resolve through the public API
//	POST /definitions/check               validate a YAML definitions body
//
// Resolution failures answer 404 (not found), 403 (not public), 409
// (cyclic), 400 (invalid reference) or 500, with the error kind and the
// debug path in the body.
package inspector
