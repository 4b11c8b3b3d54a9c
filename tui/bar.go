package tui

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
	"github.com/schollz/progressbar/v3"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/session"
)

// Bar is a one-line games progress bar for runs without the full UI.
type Bar struct {
	bar          *progressbar.ProgressBar
	wins, losses int
}

func NewBar(w io.Writer, games int, description string) *Bar {
	return &Bar{bar: progressbar.NewOptions(games,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        aurora.Yellow("█").String(),
			SaucerHead:    aurora.Yellow("█").String(),
			SaucerPadding: " ",
			BarStart:      "|",
			BarEnd:        "|",
		}),
	)}
}

// Add counts a finished game and shows the running win/loss tally.
func (b *Bar) Add(res session.Result) {
	switch res.Status {
	case game.StatusWon:
		b.wins++
	case game.StatusLost:
		b.losses++
	}
	b.bar.Describe(fmt.Sprintf("%s %s", aurora.Green(fmt.Sprintf("won %d", b.wins)), aurora.Red(fmt.Sprintf("lost %d", b.losses))))
	_ = b.bar.Add(1)
}

func (b *Bar) Tally() (wins, losses int) {
	return b.wins, b.losses
}

func (b *Bar) Close() {
	_ = b.bar.Finish()
	_ = b.bar.Close()
}
