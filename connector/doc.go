// Package connector runs query graphs on SQL databases.
//
// A Connector holds named databases of a schema registry. Read only graphs
// run directly on the connection pool, where sibling relation reads may run
// in parallel and results may be cached. Graphs with writes run in a single
// transaction that is committed when every node succeeded and rolled back
// otherwise.
//
//	reg, _ := schema.LoadFile("schema.yaml")
//	cfg, _ := connector.LoadConfig("connector.yaml")
//	c, err := connector.Open(reg, cfg, connector.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	data, err := c.Request(ctx, "blog", `{ users(first: 10) { id email } }`, "", nil)
package connector
