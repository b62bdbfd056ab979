package cli

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
)

// ErrNoReaderChosen is returned when the operator backs out of the picker.
var ErrNoReaderChosen = errors.New("no reader chosen")

// ReaderPicker chooses one reader out of a discovery snapshot.
type ReaderPicker interface {
	Pick(readers []terminal.Reader) (terminal.Reader, error)
}

// FirstReader picks the first reader without asking. Used when stdin is
// not a terminal.
type FirstReader struct{}

func (FirstReader) Pick(readers []terminal.Reader) (terminal.Reader, error) {
	if len(readers) == 0 {
		return terminal.Reader{}, ErrNoReaderChosen
	}
	return readers[0], nil
}

// PromptPicker asks the operator with an arrow-key menu.
type PromptPicker struct {
	// run is a test seam around promptui.Select.Run.
	run func(p *promptui.Select) (int, string, error)
}

func (p PromptPicker) Pick(readers []terminal.Reader) (terminal.Reader, error) {
	if len(readers) == 0 {
		return terminal.Reader{}, ErrNoReaderChosen
	}

	items := make([]string, len(readers))
	for i, r := range readers {
		items[i] = fmt.Sprintf("[%d] %s", i+1, renderReader(r))
	}

	sel := &promptui.Select{
		Label: "Select a reader",
		Items: items,
		Size:  min(10, len(items)),
	}

	run := p.run
	if run == nil {
		run = func(s *promptui.Select) (int, string, error) { return s.Run() }
	}
	idx, _, err := run(sel)
	if err != nil {
		if errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrInterrupt) {
			return terminal.Reader{}, ErrNoReaderChosen
		}
		return terminal.Reader{}, err
	}
	return readers[idx], nil
}

// defaultPicker prompts on a terminal and takes the first reader otherwise.
func defaultPicker() ReaderPicker {
	if stdinIsTerminal() {
		return PromptPicker{}
	}
	return FirstReader{}
}
