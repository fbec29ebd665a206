// Package main provides the secloc CLI tool.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ZacharyZcR/secloc"
	"github.com/ZacharyZcR/secloc/internal/cli"
	"github.com/fatih/color"
)

var (
	verbose        = flag.Bool("v", false, "详细模式：显示节区熵")
	suspiciousOnly = flag.Bool("s", false, "仅显示可疑节区（RWX权限）")
	sectionName    = flag.String("section", "", "按名称查找节区 (例如: .text)")
	address        = flag.String("addr", "", "查找包含该地址的节区 (十六进制，例如: 0x140001000)")
	detectCaves    = flag.Bool("caves", false, "检测已映射节区中的Code Caves")
	minCaveSize    = flag.Uint("min-cave-size", 32, "Code Cave最小大小（字节）")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if err := run(); err != nil {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprintf(os.Stderr, "\n错误: %v\n\n", err)
		os.Exit(1)
	}
}

func run() error {
	loc, err := secloc.New()
	if err != nil {
		return fmt.Errorf("读取进程镜像失败: %w", err)
	}

	reporter := cli.NewReporter(loc)
	reporter.SetVerbose(*verbose)
	reporter.SetSuspiciousOnly(*suspiciousOnly)

	switch {
	case *sectionName != "":
		s, ok := loc.Find(*sectionName)
		if !ok {
			return fmt.Errorf("未找到节区: %s", *sectionName)
		}
		reporter.PrintSection(s)
	case *address != "":
		addr, err := parseHexAddress(*address)
		if err != nil {
			return err
		}
		s, ok := loc.Containing(addr)
		if !ok {
			return fmt.Errorf("地址 0x%X 不属于任何节区", addr)
		}
		reporter.PrintSection(s)
	default:
		reporter.Print()
	}

	if *detectCaves {
		reporter.PrintCodeCaves(loc.CodeCaves(uint32(*minCaveSize)), uint32(*minCaveSize))
	}

	return nil
}

func parseHexAddress(addr string) (uintptr, error) {
	var result uint64
	_, err := fmt.Sscanf(addr, "0x%x", &result)
	if err != nil {
		_, err = fmt.Sscanf(addr, "%x", &result)
		if err != nil {
			return 0, fmt.Errorf("地址格式错误: %s (应为十六进制，例如: 0x140001000)", addr)
		}
	}
	return uintptr(result), nil
}

func printUsage() {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Println("\nsecloc - 进程镜像节区定位工具")

	fmt.Println("\n用法:")
	fmt.Println("  secloc [选项]")
	fmt.Println("\n选项:")
	fmt.Println("  -v              详细模式：显示每个节区的熵")
	fmt.Println("  -s              仅显示可疑节区（RWX权限，潜在安全风险）")
	fmt.Println("  -section <名称> 按名称查找节区（例如: .text, .data）")
	fmt.Println("  -addr <地址>    查找包含该地址的节区（十六进制）")
	fmt.Println("  -caves          检测已映射节区中的Code Caves")
	fmt.Println("  -min-cave-size  Code Cave最小大小（字节，默认: 32）")

	fmt.Println("\n示例:")
	fmt.Println("  secloc")
	fmt.Println("  secloc -v -s")
	fmt.Println("  secloc -section .rdata")
	fmt.Println("  secloc -addr 0x140001000")
	fmt.Println("  secloc -caves -min-cave-size 64")
	fmt.Println()
}
