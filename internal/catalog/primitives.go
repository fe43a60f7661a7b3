package catalog

// Primitive is a kind of biomedical entity that can be searched by term.
type Primitive struct {
	Name  string
	Label string
	// Example is offered by prompts as a sample term.
	Example string
}

var (
	Gene       = Primitive{Name: "Gene", Label: "Gene", Example: "ACE2"}
	Protein    = Primitive{Name: "Protein", Label: "Protein", Example: "ACE2_HUMAN"}
	Drug       = Primitive{Name: "Drug", Label: "Drug", Example: "imatinib"}
	Metabolite = Primitive{Name: "Metabolite", Label: "Metabolite", Example: "glucose"}
	Disease    = Primitive{Name: "Disease", Label: "Disease", Example: "Cancer"}
	Pathway    = Primitive{Name: "Pathway", Label: "Pathway", Example: "Apoptosis"}
	Phenotype  = Primitive{Name: "Phenotype", Label: "Phenotype", Example: "Seizure"}
	Tissue     = Primitive{Name: "Tissue", Label: "Tissue", Example: "liver"}
	Variant    = Primitive{Name: "Variant", Label: "Variant", Example: "rs3761624"}
)

func Primitives() []Primitive {
	return []Primitive{Gene, Protein, Drug, Metabolite, Disease, Pathway, Phenotype, Tissue, Variant}
}

func TermSpec(p Primitive) string {
	return "Term[" + p.Name + "]"
}

func InputSpec(p Primitive) string {
	return "Input[" + p.Name + "]"
}
