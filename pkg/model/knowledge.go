package model

// KnowledgeEntry is one searchable sentence derived from exactly one VehicleRecord.
// Its position in the knowledge base is the identity used by the similarity index.
type KnowledgeEntry struct {
	Text string
	Data map[string]string
}

// KnowledgeBase is the ordered retrieval corpus
type KnowledgeBase []*KnowledgeEntry

// Texts returns the sentence of every entry in knowledge base order
func (kb KnowledgeBase) Texts() []string {
	texts := make([]string, len(kb))
	for i, entry := range kb {
		texts[i] = entry.Text
	}
	return texts
}
