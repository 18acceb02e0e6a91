package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"nivesh/internal/asset"
	"nivesh/internal/client"
	"nivesh/internal/money"
	"nivesh/internal/portfolio"
	"nivesh/internal/wire"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)

	boardTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	boardHead  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	boardRow   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boardTop   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	boardBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func printSuccess(msg string) { success.Println(msg) }

func printWarn(msg string) { warn.Println(msg) }

func printError(msg string) { danger.Println(msg) }

func printInfo(msg string) { neutral.Println(msg) }

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func printHelp() {
	accent.Println("Commands")
	fmt.Println(`  port                    show your portfolio
  prices                  show latest prices
  assets                  list the instrument catalog
  board                   show the leaderboard
  buy SYMBOL QTY          buy (QTY may be fractional, e.g. 0.01)
  sell SYMBOL QTY         sell
  deposit AMOUNT          move pocket cash into savings
  withdraw AMOUNT         move savings into pocket cash
  fd [list]               list fixed deposits
  fd create AMOUNT MONTHS open a fixed deposit (3/12/24/36 months)
  fd break ID             break a fixed deposit early (1% penalty)
  fd collect ID           collect a matured fixed deposit
  quiz                    answer the pending unlock quiz
  resync                  request a fresh state from the host
  quit                    leave the session`)
}

func formatMicros(m money.Money) string {
	return fmt.Sprintf("%.2f", money.ToRupees(m))
}

func colorizeMicros(m money.Money) string {
	s := formatMicros(m)
	switch {
	case m > 0:
		return success.Sprint("+" + s)
	case m < 0:
		return danger.Sprint(s)
	default:
		return s
	}
}

func renderSessionInfo(info client.SessionInfo) {
	accent.Println("\n== SESSION ==")
	fmt.Printf("ID:     %s\n", info.SessionID)
	fmt.Printf("Phase:  %s\n", info.Phase)
	fmt.Printf("Clock:  year %d, month %d (tick %d)\n", info.Year, info.Month, info.Tick)
}

func renderPortfolio(sess *client.Session, hideYear bool) {
	st := sess.Snapshot()
	if st == nil {
		printWarn("No state yet.")
		return
	}
	if hideYear {
		accent.Println("\n== PORTFOLIO ==")
	} else {
		accent.Printf("\n== PORTFOLIO (year %d, month %d) ==\n", st.CurrentYear, st.CurrentMonth)
	}
	fmt.Printf("Pocket cash:  %s\n", formatMicros(st.PocketCash))
	fmt.Printf("Savings:      %s (%.2f%% p.a.)\n",
		formatMicros(st.Savings.Balance), money.BpsToPct(st.Savings.RateBps))

	if len(st.Holdings) > 0 {
		fmt.Println()
		accent.Println("Holdings")
		fmt.Printf("%-10s %12s %14s %14s %14s\n", "SYMBOL", "QTY", "AVG", "NOW", "INVESTED")
		symbols := make([]string, 0, len(st.Holdings))
		for s := range st.Holdings {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			h := st.Holdings[symbol]
			now := "-"
			if p, ok := sess.Price(symbol); ok {
				now = formatMicros(p)
			}
			fmt.Printf("%-10s %12.4f %14s %14s %14s\n",
				symbol, money.UnitsToQty(h.QuantityUnits),
				formatMicros(h.AvgPrice), now, formatMicros(h.TotalInvested))
		}
	}
	if len(st.FixedDeposits) > 0 {
		fmt.Println()
		renderFDs(st)
	}
}

func renderFixedDeposits(sess *client.Session) {
	st := sess.Snapshot()
	if st == nil || len(st.FixedDeposits) == 0 {
		printInfo("No fixed deposits.")
		return
	}
	renderFDs(st)
}

func renderFDs(st *portfolio.State) {
	accent.Println("Fixed deposits")
	fmt.Printf("%-4s %14s %8s %8s %10s %14s\n", "ID", "AMOUNT", "TERM", "RATE", "STATUS", "ACCRUED")
	for _, fd := range st.FixedDeposits {
		status := "running"
		if fd.IsMatured {
			status = "matured"
		}
		fmt.Printf("%-4d %14s %6dmo %7.2f%% %10s %14s\n",
			fd.ID, formatMicros(fd.Amount), fd.DurationMonths,
			money.BpsToPct(fd.RateBps), status, formatMicros(st.AccruedValue(fd)))
	}
}

func renderCatalog(sess *client.Session) {
	accent.Println("\n== INSTRUMENTS ==")
	fmt.Printf("%-10s %-30s %-14s %12s\n", "SYMBOL", "NAME", "CATEGORY", "PRICE")
	for _, in := range asset.All() {
		p := "-"
		if v, ok := sess.Price(in.Symbol); ok {
			p = formatMicros(v)
		}
		fmt.Printf("%-10s %-30s %-14s %12s\n", in.Symbol, in.DisplayName, in.Category, p)
	}
}

func renderPrices(sess *client.Session) {
	prices := sess.Prices()
	if len(prices) == 0 {
		printInfo("No prices received yet.")
		return
	}
	accent.Println("\n== PRICES ==")
	symbols := make([]string, 0, len(prices))
	for s := range prices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		fmt.Printf("%-10s %14s\n", symbol, formatMicros(prices[symbol]))
	}
}

func renderPriceWindow(win client.PriceWindow) {
	accent.Printf("\n== %s, last %d months ==\n", win.Symbol, win.Months)
	for i, p := range win.Prices {
		label := fmt.Sprintf("-%d", len(win.Prices)-1-i)
		if i == len(win.Prices)-1 {
			label = "now"
		}
		value := "-"
		if p != 0 {
			value = formatMicros(p)
		}
		fmt.Printf("%-4s %14s\n", label, value)
	}
}

func renderLeaderboard(board wire.Leaderboard) string {
	if len(board.Rows) == 0 {
		return "No players yet."
	}
	var b strings.Builder
	b.WriteString(boardTitle.Render("LEADERBOARD"))
	b.WriteString("\n")
	b.WriteString(boardHead.Render(fmt.Sprintf("%-5s %-20s %16s %9s", "RANK", "PLAYER", "NET WORTH", "CAGR")))
	for _, row := range board.Rows {
		style := boardRow
		if row.Rank == 1 {
			style = boardTop
		}
		b.WriteString("\n")
		b.WriteString(style.Render(fmt.Sprintf("%-5d %-20s %16s %8.2f%%",
			row.Rank, truncate(row.PlayerName, 20), formatMicros(row.NetWorth), row.CAGR*100)))
	}
	return boardBox.Render(b.String())
}

func renderFinal(sess *client.Session) {
	st := sess.FinalState()
	if st == nil {
		return
	}
	fmt.Printf("Final pocket cash: %s\n", formatMicros(st.PocketCash))
	fmt.Printf("Final savings:     %s\n", formatMicros(st.Savings.Balance))
	fmt.Println(renderLeaderboard(sess.Leaderboard()))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
