package tamd

// Alias defines name with the value of target once target is defined. The
// alias is an ordinary deferred definition: it is reported like any other
// duplicate, and it is Invalid when target is.
func (r *Runtime) Alias(name, target string) {
	r.DefineWith(name, []string{target}, func(value any) any {
		return value
	})
}
