// Package cli provides command-line interface utilities.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZacharyZcR/secloc"
	"github.com/fatih/color"
)

// Reporter formats and prints the sections of a mapped image.
type Reporter struct {
	loc            *secloc.Locator
	out            io.Writer
	verbose        bool
	suspiciousOnly bool
}

// NewReporter creates a new reporter for the given locator.
func NewReporter(loc *secloc.Locator) *Reporter {
	return &Reporter{loc: loc, out: os.Stdout}
}

// SetOutput redirects the report, stdout by default.
func (r *Reporter) SetOutput(w io.Writer) {
	r.out = w
}

// SetVerbose enables verbose mode (show section entropy).
func (r *Reporter) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// SetSuspiciousOnly enables suspicious-only mode (show RWX sections only).
func (r *Reporter) SetSuspiciousOnly(suspicious bool) {
	r.suspiciousOnly = suspicious
}

// Print outputs the complete section report.
func (r *Reporter) Print() {
	r.printHeader()
	r.printBasicInfo()
	r.printSections()
}

// PrintSection outputs a single section.
func (r *Reporter) PrintSection(s secloc.Section) {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintf(r.out, "\n【节区 %s】\n", s.Name)

	fmt.Fprintf(r.out, "  %-20s: %d\n", "序号", s.Index)
	fmt.Fprintf(r.out, "  %-20s: 0x%X\n", "内存地址", s.VirtualAddress)
	fmt.Fprintf(r.out, "  %-20s: 0x%X\n", "RVA", s.VirtualAddress-r.loc.Base())
	fmt.Fprintf(r.out, "  %-20s: %s\n", "虚拟大小", formatSize(int64(s.VirtualSize)))
	fmt.Fprintf(r.out, "  %-20s: %s\n", "原始大小", formatSize(int64(s.DataSize)))
	fmt.Fprintf(r.out, "  %-20s: ", "权限")
	_, _ = permColor(s.Permissions()).Fprintln(r.out, s.Permissions())
	fmt.Fprintf(r.out, "  %-20s: 0x%08X\n", "特征", s.Characteristics)
	if r.verbose {
		fmt.Fprintf(r.out, "  %-20s: %.4f\n", "熵", r.loc.Entropy(s))
	}
}

// PrintCodeCaves outputs the code caves found in mapped sections.
func (r *Reporter) PrintCodeCaves(caves []secloc.CodeCave, minSize uint32) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(r.out)
	_, _ = cyan.Fprintf(r.out, "========== Code Caves (最小 %d 字节) ==========\n", minSize)

	if len(caves) == 0 {
		_, _ = yellow.Fprintln(r.out, "未发现符合条件的 Code Caves")
		return
	}

	_, _ = green.Fprintf(r.out, "发现 %d 个 Code Caves:\n\n", len(caves))

	for i, cave := range caves {
		fillPattern := "0x00"
		if cave.FillByte == 0xCC {
			fillPattern = "0xCC (INT3)"
		}

		fmt.Fprintf(r.out, "%d. 节区: %s\n", i+1, cave.Section)
		fmt.Fprintf(r.out, "   地址:     0x%X\n", cave.Address)
		fmt.Fprintf(r.out, "   RVA:      0x%08X\n", cave.RVA)
		fmt.Fprintf(r.out, "   大小:     %d 字节\n", cave.Size)
		fmt.Fprintf(r.out, "   填充:     %s\n", fillPattern)
		fmt.Fprintln(r.out)
	}
}

func (r *Reporter) printHeader() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintln(r.out, "\n╔════════════════════════════════════════╗")
	_, _ = cyan.Fprintln(r.out, "║          secloc 进程镜像节区           ║")
	_, _ = cyan.Fprintln(r.out, "╚════════════════════════════════════════╝")
}

func (r *Reporter) printBasicInfo() {
	yellow := color.New(color.FgYellow, color.Bold)
	_, _ = yellow.Fprintln(r.out, "\n【基本信息】")

	fmt.Fprintf(r.out, "  %-20s: 0x%X\n", "镜像基址", r.loc.Base())
	fmt.Fprintf(r.out, "  %-20s: %d\n", "节区数量", r.loc.Count())
}

func (r *Reporter) printSections() {
	var sections []secloc.Section
	for s := range r.loc.All() {
		if r.suspiciousOnly && s.Permissions() != "RWX" {
			continue
		}
		sections = append(sections, s)
	}

	yellow := color.New(color.FgYellow, color.Bold)
	if r.suspiciousOnly {
		_, _ = yellow.Fprintf(r.out, "\n【可疑节区】(共 %d 个)\n", len(sections))
	} else {
		_, _ = yellow.Fprintf(r.out, "\n【节区信息】(共 %d 个)\n", len(sections))
	}

	if len(sections) == 0 {
		if r.suspiciousOnly {
			fmt.Fprintln(r.out, "  未发现可疑节区")
		} else {
			fmt.Fprintln(r.out, "  未发现节区")
		}
		return
	}

	width := 100
	if r.verbose {
		width = 110
	}

	// Header
	fmt.Fprintln(r.out, strings.Repeat("-", width))
	fmt.Fprintf(r.out, "  %-4s %-10s %-18s %-12s %-12s %-6s %-12s",
		"#", "名称", "内存地址", "虚拟大小", "原始大小", "权限", "特征")
	if r.verbose {
		fmt.Fprintf(r.out, " %-8s", "熵")
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, strings.Repeat("-", width))

	// Rows
	for _, s := range sections {
		fmt.Fprintf(r.out, "  %-4d %-10s 0x%-16X %-12s %-12s ",
			s.Index,
			s.Name,
			s.VirtualAddress,
			formatSize(int64(s.VirtualSize)),
			formatSize(int64(s.DataSize)),
		)
		_, _ = permColor(s.Permissions()).Fprintf(r.out, "%-6s", s.Permissions())
		fmt.Fprintf(r.out, " 0x%08X", s.Characteristics)
		if r.verbose {
			fmt.Fprintf(r.out, "   %.4f", r.loc.Entropy(s))
		}
		fmt.Fprintln(r.out)
	}
	fmt.Fprintln(r.out, strings.Repeat("-", width))
}

// permColor highlights dangerous permissions (RWX) in red and executable ones in yellow.
func permColor(perms string) *color.Color {
	switch {
	case perms == "RWX":
		return color.New(color.FgRed, color.Bold)
	case strings.Contains(perms, "X"):
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgWhite)
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
