package http

type Route struct {
	Path    string
	Method  string
	Handler Handler
}

var NotFoundHandler Handler = HandlerFunc(func(req *Request, reply *Reply) {
	if err := reply.Status(StatusNotFound); err != nil {
		return
	}
	_ = reply.Send(StatusText(StatusNotFound))
})
