package agent

// PanelPhase names the preview panel's lifecycle state.
type PanelPhase string

const (
	// PanelClosed means no panel is shown.
	PanelClosed PanelPhase = "closed"
	// PanelOpen means the panel is shown and editable.
	PanelOpen PanelPhase = "open"
	// PanelLoading means a preview rewrite is in flight; the rewrite action
	// is disabled until the result arrives.
	PanelLoading PanelPhase = "loading"
)

// PreviewView is the render model handed to the embedder whenever the panel
// changes.
type PreviewView struct {
	Phase         PanelPhase
	SelectedText  string
	Style         string
	RewrittenText string
	Error         string
}

// previewPanel holds the preview flow's state: the captured selection, the
// chosen style, and the last result or error. The stored range is cloned at
// open so later selection changes cannot move the apply target, and it is
// consumed exactly once.
type previewPanel struct {
	phase         PanelPhase
	selectedText  string
	style         string
	rewrittenText string
	err           string
	storedRange   Range
}

// open resets the panel around a new selection. Reopening over an existing
// panel replaces it wholesale, matching a fresh capture.
func (p *previewPanel) open(selected, style string, r Range) {
	p.phase = PanelOpen
	p.selectedText = selected
	p.style = style
	p.rewrittenText = ""
	p.err = ""
	p.storedRange = nil
	if r != nil {
		p.storedRange = r.Clone()
	}
}

func (p *previewPanel) close() {
	p.phase = PanelClosed
	p.selectedText = ""
	p.rewrittenText = ""
	p.err = ""
	p.storedRange = nil
}

func (p *previewPanel) startRewrite(style string) {
	p.phase = PanelLoading
	p.style = style
	p.err = ""
}

func (p *previewPanel) finishRewrite(rewritten, errText string) {
	p.phase = PanelOpen
	if errText != "" {
		p.err = errText
		return
	}
	p.rewrittenText = rewritten
}

// takeRange hands out the stored range and clears it; the second take
// returns nil.
func (p *previewPanel) takeRange() Range {
	r := p.storedRange
	p.storedRange = nil
	return r
}

func (p *previewPanel) view() PreviewView {
	return PreviewView{
		Phase:         p.phase,
		SelectedText:  p.selectedText,
		Style:         p.style,
		RewrittenText: p.rewrittenText,
		Error:         p.err,
	}
}
