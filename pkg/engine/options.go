package engine

// Opt defines an engine option
type Opt func(*Engine)

// WithPublisher configures a publisher for the engine
func WithPublisher(p Publisher) Opt {
	return func(e *Engine) {
		e.publishers = append(e.publishers, p)
	}
}

// WithExtractor configures the accent color extractor
func WithExtractor(x Extractor) Opt {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithPrefetcher configures the prefetcher warming upcoming images
func WithPrefetcher(p Prefetcher) Opt {
	return func(e *Engine) {
		e.prefetcher = p
	}
}
