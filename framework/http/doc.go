// Package http provides the request and response helpers used by the
// container's HTTP surfaces.
//
//	req := gohttp.NewRequest(r)
//	tag := req.Query("tag")
//	id  := req.RouteParam("id")
//
//	res := gohttp.NewResponse(w)
//	res.Success(services)                        // 200 {"data": ...}
//	res.NotFound("Service not found.")           // 404 {"message": ...}
//	res.ValidationError(bag)                     // 422 {"errors": {...}}
//	res.Problem(409, err.Error(), gohttp.Envelope{"path": path})
package http
