package document

// Corpus is the set of documents fetched for one request, keyed by reference value.
// Iteration follows backend order. A repeated reference replaces the earlier
// document in place (last write wins).
type Corpus struct {
	refs []string
	docs map[string]Document
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docs: make(map[string]Document)}
}

// Add registers doc under ref.
func (c *Corpus) Add(ref string, doc Document) {
	if _, ok := c.docs[ref]; !ok {
		c.refs = append(c.refs, ref)
	}
	c.docs[ref] = doc
}

// Get returns the document registered under ref.
func (c *Corpus) Get(ref string) (Document, bool) {
	d, ok := c.docs[ref]
	return d, ok
}

// Refs returns references in insertion order.
func (c *Corpus) Refs() []string { return c.refs }

// Len returns the number of distinct references.
func (c *Corpus) Len() int { return len(c.refs) }
