package extract

// Extractor turns raw HTML into a Document. Sources hold one so tests can
// substitute a fixed result.
type Extractor interface {
	Extract(input []byte) Document
}

// InnerTextExtractor returns what document.body.innerText would.
type InnerTextExtractor struct{}

func (InnerTextExtractor) Extract(input []byte) Document {
	return VisibleText(input)
}
