package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	levelStyles = map[message.Level]lipgloss.Style{
		message.LevelInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		message.LevelWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		message.LevelError:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		message.LevelCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("201")),
	}
)

const previewBytes = 8

func renderTitle(s string) string {
	return titleStyle.Render(s)
}

func renderLevel(l message.Level) string {
	name := fmt.Sprintf("%-8s", l.String())
	if st, ok := levelStyles[l]; ok {
		return st.Render(name)
	}
	return name
}

func renderTime(t time.Time) string {
	return dimStyle.Render(t.Format("15:04:05.000000"))
}

func renderBlob(seq int, b *datablob.DataBlob) string {
	data := b.Data()
	preview := data
	if len(preview) > previewBytes {
		preview = preview[:previewBytes]
	}
	return fmt.Sprintf("%4d %s %4dB %s", seq, renderTime(b.Time()), b.Size(), hex.EncodeToString(preview))
}

func renderMessage(seq int, m *message.Message) string {
	return fmt.Sprintf("%4d %s %s %s", seq, renderTime(m.Time()), renderLevel(m.Level()), m.Value())
}
