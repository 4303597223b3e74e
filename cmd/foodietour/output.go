package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styled 按目标输出探测颜色能力，写入文件或管道时不带转义序列
func styled(w io.Writer, color string, bold bool, text string) string {
	style := lipgloss.NewRenderer(w).NewStyle().Bold(bold)
	if color != "" {
		style = style.Foreground(lipgloss.Color(color))
	}
	return style.Render(text)
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styled(w, "10", false, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styled(w, "9", false, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styled(w, "11", false, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStep(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styled(w, "14", false, "→ "+fmt.Sprintf(format, args...)))
}

func printStatus(w io.Writer, label string, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", styled(w, "", true, label+":"), fmt.Sprintf(format, args...))
}
