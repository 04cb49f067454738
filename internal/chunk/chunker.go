package chunk

// Chunker applies the sliding window to documents and tags the result.
type Chunker struct {
	size   int
	step   int
	hints  HintFunc
	tagger Tagger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithHints sets the boundary hint strategy.
func WithHints(h HintFunc) Option {
	return func(c *Chunker) { c.hints = h }
}

// WithTagger sets the category/topic classifier.
func WithTagger(t Tagger) Option {
	return func(c *Chunker) { c.tagger = t }
}

// New validates the window and returns a Chunker.
func New(size, step int, opts ...Option) (*Chunker, error) {
	if err := ValidateWindow(size, step); err != nil {
		return nil, err
	}
	c := &Chunker{size: size, step: step}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Size returns the window size.
func (c *Chunker) Size() int { return c.size }

// Step returns the step size.
func (c *Chunker) Step() int { return c.step }

// Chunk splits one document. Each chunk carries the document metadata plus
// filename, category and topic. A category or topic already present in the
// document metadata is kept.
func (c *Chunker) Chunk(doc Document) ([]Chunk, error) {
	var hints []int
	if c.hints != nil {
		hints = c.hints(doc.Text)
	}

	chunks, err := Split(doc, c.size, c.step, hints)
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		meta := chunks[i].Metadata
		meta[MetaFilename] = doc.SourceID
		if c.tagger == nil {
			continue
		}
		category, topic := c.tagger.Classify(chunks[i].Text, doc.SourceID)
		if _, ok := doc.Metadata[MetaCategory]; !ok && category != "" {
			meta[MetaCategory] = category
		}
		if _, ok := doc.Metadata[MetaTopic]; !ok && topic != "" {
			meta[MetaTopic] = topic
		}
	}
	return chunks, nil
}
