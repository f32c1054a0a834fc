// Package definitions loads service definitions from YAML files.
//
// A file has three optional top-level keys:
//
//	imports:
//	  - ./mail/services.yml          # relative to this file, loaded first
//	parameters:
//	  db.dsn: "postgres://%db.host%/app"
//	services:
//	  db:
//	    module: ./db/pool
//	    arguments: ["%db.dsn%"]
//	  users:
//	    factory: db:Repository
//	    tags: [{name: repository, priority: 10}]
//	  store: "@users"                 # alias
//	  events:
//	    module: ./events/bus
//	    arguments:
//	      - !tagged {tag: listener, orderBy: priority}
//	      - !service {id: metrics, required: false}
//	    calls:
//	      - [SetName, ["%app.name%"]]
//	      - {method: Warm, await: false}
//
// In arguments, "@id" references a service, "@?id" an optional one, "@@x"
// is the literal "@x" and a string made of a single "%name%" references a
// parameter. The custom tags !service, !parameter, !tagged and !services
// spell the same references explicitly.
package definitions
