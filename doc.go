// Package tamd provides an asynchronous module registry for Go.
//
// A Runtime maps module names to values. Modules are defined in any order and
// required by name; a request completes once every name it lists has been
// defined, and its continuation then runs on the runtime's Host, never inside
// the call that satisfied it.
//
// # Quick Start
//
//	rt := tamd.MustNew()
//	defer rt.Close(ctx)
//
//	rt.Require([]string{"config", "db"}, func(values []any) {
//	    cfg := values[0].(*Config)
//	    db := values[1].(*Database)
//	    serve(cfg, db)
//	})
//
//	rt.Define("db", &Database{})
//	rt.Define("config", &Config{Port: 8080})
//
// # Defining Modules
//
// A module value must be an object (a map, a struct, or a pointer to either)
// or a factory (a function taking no arguments or only variadic ones). Other
// values are recorded as invalid and reported:
//
//	rt.Define("config", &Config{})            // registered
//	rt.Define("clock", func() time.Time {...}) // registered, stored as-is
//	rt.Define("port", 8080)                    // invalid, reported
//
// Names starting with "." are relative and rejected. The first definition of
// a name wins; later ones are reported as duplicates and ignored.
//
// DefineWith defers a definition until its dependencies exist. When the
// factory is a function it is called with the dependency values:
//
//	rt.DefineWith("service", []string{"config", "db"},
//	    func(cfg *Config, db *Database) *Service {
//	        return &Service{cfg: cfg, db: db}
//	    })
//
// Alias defines one name as another:
//
//	rt.Alias("settings", "config")
//
// # Requiring Modules
//
// Require returns a Request handle. Values are delivered in request order,
// duplicates included. Await blocks until the request settles:
//
//	values, err := rt.Await(ctx, "config", "db")
//	cfg, err := tamd.AwaitAs[*Config](ctx, rt, "config")
//
// AwaitStruct fills tagged fields:
//
//	type Deps struct {
//	    Config *Config   `tamd:"config"`
//	    DB     *Database `tamd:"db"`
//	}
//	deps, err := tamd.AwaitStruct[Deps](ctx, rt)
//
// Await must not be called from a continuation, since the host cannot run
// the continuation it would wait for.
//
// # Reports
//
// Problems are never returned from Define or Require. They are delivered to
// the runtime's Sink as a Report:
//
//	InvalidIdentifier    relative module name
//	DuplicateDefinition  name already defined
//	InvalidValue         value is neither an object nor a factory
//	MissingModule        a required name was not defined within the timeout
//
// A request that times out reports each unresolved name once and stays
// pending; a later definition still completes it.
//
//	rt := tamd.MustNew(
//	    tamd.WithTimeout(500*time.Millisecond),
//	    tamd.WithSink(tamd.LogSink(logger)),
//	)
//
// # Reinitializing
//
// Reinitialize clears every module, pending request, and timer. Continuations
// already queued on the host are discarded. The returned Completion settles
// on the host once the runtime is empty:
//
//	rt.Reinitialize().Then(func() {
//	    rt.Define("config", fresh)
//	})
//
// # Debugging
//
// Validate reports undeclared dependencies and cycles among DefineWith
// declarations. PrintGraph and PrintGraphDOT render the module graph:
//
//	rt.PrintGraph()
//	//   ● config
//	//   ○ service ← config, db
//	//   ? db (waiting: 1)
//
// # Hosts
//
// By default New starts a go-eventloop loop and Close stops it. WithHost
// supplies another host; the tamdtest package provides a manual one that
// runs tasks and timers only when a test says so.
package tamd
