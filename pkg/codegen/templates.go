package codegen

type handlerData struct {
	Name    string
	Ctx     string
	Call    string
	Body    string
	Runtime string
}

// input: handlerData
const handlerT = `// Handler serves the {{ printf "%q" .Name }} server function.
func Handler(w http.ResponseWriter, r *http.Request) {
	{{ .Runtime }}.Serve(w, r, {{ printf "%q" .Name }}, {{ .Name }})
}

func {{ .Name }}({{ .Ctx }} context.Context, {{ .Call }} *{{ .Runtime }}.Call) (any, error) {
{{ .Body }}
}
`
