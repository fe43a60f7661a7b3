package ports

type NodeRegistryPort interface {
	Lookup(spec string) (MetaNode, error)
	DataNode(spec string) (*DataNode, error)
	ProcessNode(spec string) (*ProcessNode, error)
	ListDataNodes() []*DataNode
	ListProcessNodes() []*ProcessNode
	Categories() []string
	ProcessNodesByTag(category string) []*ProcessNode
	Downstream(dataType string) []*ProcessNode
	Len() int
}
