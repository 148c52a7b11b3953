// Package querygraph builds and runs query graphs: directed acyclic graphs
// of reads and writes, where edges carry the ids produced by a node into the
// queries of its dependents.
//
// A Builder lowers the fields of a request into a graph, and Execute runs
// it against an Interpreter, usually bound to one database transaction.
//
//	doc, err := querygraph.ParseDocument(src, "", vars)
//	if err != nil {
//		return err
//	}
//	g, err := querygraph.NewBuilder(reg).Build(doc.Fields[0])
//	if err != nil {
//		return err
//	}
//	outcomes, err := querygraph.Execute(ctx, g, interpreter)
package querygraph
