// Path: internal/delivery/terminal/browser.go
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"media-search/internal/daterange"
	"media-search/internal/domain"
	"media-search/internal/events"
	"media-search/internal/presenter"
	"media-search/internal/service"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	rowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

const helpText = `commands:
  s <keyword>          search (empty keyword clears)
  n | next             next page
  p | prev             previous page
  size <n>             page size
  sort                 toggle sort order
  exact on|off         exact match
  range <start> <end>  date range (YYYY-MM-DD)
  range clear          remove the date range
  datesort asc|desc    re-order the current page by date
  r | refresh          reload the current page
  h | help             this text
  q | quit             exit`

// Browser is a line-oriented search client. It applies one command per
// input line and prints the page once the controller has settled.
type Browser struct {
	ctrl     *service.Controller
	events   <-chan events.Event
	stop     func()
	in       io.Reader
	out      io.Writer
	dateSort domain.SortOrder
}

// NewBrowser subscribes to controller snapshots on broker.
func NewBrowser(ctrl *service.Controller, broker *events.Broker, in io.Reader, out io.Writer) *Browser {
	ch, stop := broker.Subscribe(events.TopicSearchState)
	return &Browser{
		ctrl:   ctrl,
		events: ch,
		stop:   stop,
		in:     in,
		out:    out,
	}
}

// Run reads commands until quit, EOF or ctx is done.
func (b *Browser) Run(ctx context.Context) error {
	defer b.stop()

	fmt.Fprintln(b.out, titleStyle.Render("Media Search"))
	fmt.Fprintln(b.out, metaStyle.Render("type h for help"))

	if b.ctrl.Snapshot().Status == service.StatusIdle {
		b.ctrl.Mount()
	}
	if err := b.settleAndRender(ctx, b.ctrl.Snapshot()); err != nil {
		return err
	}

	scanner := bufio.NewScanner(b.in)
	for {
		fmt.Fprint(b.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(b.out)
			return scanner.Err()
		}

		quit, err := b.execute(ctx, strings.TrimSpace(scanner.Text()))
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// execute applies one command line.
func (b *Browser) execute(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	before := b.ctrl.Snapshot().Seq

	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "q", "quit", "exit":
		return true, nil
	case "h", "help":
		fmt.Fprintln(b.out, helpText)
		return false, nil
	case "s", "search":
		b.ctrl.SubmitKeyword(arg)
	case "n", "next":
		if !b.ctrl.Next() {
			fmt.Fprintln(b.out, metaStyle.Render("no next page"))
			return false, nil
		}
	case "p", "prev":
		if !b.ctrl.Prev() {
			fmt.Fprintln(b.out, metaStyle.Render("already on the first page"))
			return false, nil
		}
	case "size":
		n, err := strconv.Atoi(arg)
		if err == nil {
			err = b.ctrl.SetPageSize(n)
		}
		if err != nil {
			b.printError(fmt.Sprintf("invalid page size %q", arg))
			return false, nil
		}
	case "sort":
		b.ctrl.ToggleSort()
	case "exact":
		switch strings.ToLower(arg) {
		case "on", "true":
			b.ctrl.SetExactMatch(true)
		case "off", "false":
			b.ctrl.SetExactMatch(false)
		default:
			b.printError("usage: exact on|off")
			return false, nil
		}
	case "range":
		if strings.EqualFold(arg, "clear") {
			b.ctrl.ClearDateRange()
			break
		}
		start, end, _ := strings.Cut(arg, " ")
		if err := b.ctrl.ApplyDateRange(start, strings.TrimSpace(end)); err != nil {
			var dateErr *daterange.Error
			if errors.As(err, &dateErr) {
				b.printError(fmt.Sprintf("%s: %s", dateErr.Field(), dateErr.Error()))
				return false, nil
			}
			return false, err
		}
	case "datesort":
		order, err := domain.ParseSortOrder(arg)
		if err != nil {
			b.printError("usage: datesort asc|desc")
			return false, nil
		}
		b.dateSort = order
		b.render(b.ctrl.Snapshot())
		return false, nil
	case "r", "refresh":
		b.ctrl.Refresh()
	default:
		b.printError(fmt.Sprintf("unknown command %q, type h for help", cmd))
		return false, nil
	}

	b.dateSort = ""
	snap := b.ctrl.Snapshot()
	if snap.Seq == before {
		b.render(snap)
		return false, nil
	}
	return false, b.settleAndRender(ctx, snap)
}

// settleAndRender waits for a published snapshot at or after current.Seq
// that is no longer loading, then prints it.
func (b *Browser) settleAndRender(ctx context.Context, current service.Snapshot) error {
	if current.Status != service.StatusLoading {
		b.render(current)
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-b.events:
			if !ok {
				return nil
			}
			snap, isSnap := ev.Data.(service.Snapshot)
			if !isSnap || snap.SessionID != b.ctrl.ID() {
				continue
			}
			if snap.Seq >= current.Seq && !snap.Loading {
				b.render(snap)
				return nil
			}
		}
	}
}

func (b *Browser) render(snap service.Snapshot) {
	var sb strings.Builder

	q := snap.Query
	filters := fmt.Sprintf("keyword=%q size=%d sort=%s exact=%t", q.Keyword, q.PageSize, q.SortOrder, q.ExactMatch)
	if q.DateRange != nil {
		filters += fmt.Sprintf(" range=%s..%s", q.DateRange.StartString(), q.DateRange.EndString())
	}
	sb.WriteString(metaStyle.Render(filters))
	sb.WriteString("\n")

	if snap.Error != "" {
		sb.WriteString(errorStyle.Render("Error: " + snap.Error))
		sb.WriteString("\n")
		fmt.Fprint(b.out, sb.String())
		return
	}
	if snap.Result == nil {
		sb.WriteString(metaStyle.Render("no results yet"))
		sb.WriteString("\n")
		fmt.Fprint(b.out, sb.String())
		return
	}

	sb.WriteString(headerStyle.Render(fmt.Sprintf("Total Results: %d  Page %d", snap.Result.TotalCount, snap.PageIndex+1)))
	sb.WriteString("\n")

	items := snap.Result.Items
	if b.dateSort != "" {
		items = presenter.SortByDate(items, b.dateSort)
	}
	rows := presenter.Rows(items)
	if len(rows) == 0 {
		sb.WriteString(metaStyle.Render("No results"))
		sb.WriteString("\n")
	}
	for _, row := range rows {
		body := fmt.Sprintf("%s  %s\n%s\n%s  %s  %s",
			row.Date, headerStyle.Render(row.Title),
			row.Description,
			metaStyle.Render(row.Photographer), metaStyle.Render(row.Dimensions),
			urlStyle.Render(row.LargeURL))
		sb.WriteString(rowStyle.Render(body))
		sb.WriteString("\n")
	}

	var nav []string
	if snap.CanPrev {
		nav = append(nav, "[p]rev")
	}
	if snap.CanNext {
		nav = append(nav, "[n]ext")
	}
	if len(nav) > 0 {
		sb.WriteString(metaStyle.Render(strings.Join(nav, "  ")))
		sb.WriteString("\n")
	}
	fmt.Fprint(b.out, sb.String())
}

func (b *Browser) printError(msg string) {
	fmt.Fprintln(b.out, errorStyle.Render(msg))
}
