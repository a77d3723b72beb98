package shell

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/klytics/sheetkit/internal/workbook"
)

func wantArgs(args []string, min, max int, usage string) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (s *Session) document() (*workbook.Document, error) {
	if s.Doc == nil {
		return nil, fmt.Errorf("no workbook open — use 'open <file>' or 'new'")
	}
	return s.Doc, nil
}

func (s *Session) current() (*workbook.Worksheet, error) {
	if _, err := s.document(); err != nil {
		return nil, err
	}
	if s.Current == nil {
		return nil, fmt.Errorf("no sheet selected — use 'use <title>'")
	}
	return s.Current, nil
}

func (s *Session) open(args []string) (string, error) {
	if err := wantArgs(args, 1, 1, "open <file>"); err != nil {
		return "", err
	}
	doc, err := workbook.Open(args[0], s.Options...)
	if err != nil {
		return "", err
	}
	s.Doc, s.Path, s.dirty = doc, args[0], false
	s.Current = doc.Sheets()[doc.ActiveSheet()]
	return fmt.Sprintf("Opened %s (%d sheets)", args[0], len(doc.Sheets())), nil
}

func (s *Session) newDoc(args []string) (string, error) {
	if err := wantArgs(args, 0, 1, "new [title]"); err != nil {
		return "", err
	}
	title := "Sheet1"
	if len(args) == 1 {
		title = args[0]
	}
	doc := workbook.New(s.Options...)
	ws, err := doc.AddSheet(title)
	if err != nil {
		return "", err
	}
	s.Doc, s.Path, s.Current, s.dirty = doc, "", ws, true
	return "", nil
}

func (s *Session) sheets(args []string) (string, error) {
	doc, err := s.document()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for i, ws := range doc.Sheets() {
		marker := " "
		if i == doc.ActiveSheet() {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %d\t%s\t%s\t%s\t%s\n", marker, i, ws.Title(), ws.CodeName(), ws.Path(), ws.State())
	}
	tw.Flush()
	return sb.String(), nil
}

func (s *Session) use(args []string) (string, error) {
	if err := wantArgs(args, 1, 1, "use <title>"); err != nil {
		return "", err
	}
	doc, err := s.document()
	if err != nil {
		return "", err
	}
	ws, err := doc.Sheet(args[0])
	if err != nil {
		return "", err
	}
	s.Current = ws
	return "", nil
}

func (s *Session) get(args []string) (string, error) {
	if err := wantArgs(args, 1, 1, "get <cell>"); err != nil {
		return "", err
	}
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	c, err := ws.Cell(args[0])
	if err != nil {
		return "", err
	}
	if c.Formula != "" {
		return fmt.Sprintf("=%s  (%s)", c.Formula, c.Value), nil
	}
	return c.Value, nil
}

func (s *Session) set(args []string) (string, error) {
	if err := wantArgs(args, 2, -1, "set <cell> <value>"); err != nil {
		return "", err
	}
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	value := strings.Join(args[1:], " ")
	if strings.HasPrefix(value, "=") {
		err = ws.SetFormula(args[0], value)
	} else if f, perr := strconv.ParseFloat(value, 64); perr == nil {
		err = ws.SetCell(args[0], f)
	} else {
		err = ws.SetCell(args[0], value)
	}
	if err != nil {
		return "", err
	}
	s.dirty = true
	return "", nil
}

func (s *Session) clear(args []string) (string, error) {
	if err := wantArgs(args, 1, 1, "clear <cell>"); err != nil {
		return "", err
	}
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	if err := ws.ClearCell(args[0]); err != nil {
		return "", err
	}
	s.dirty = true
	return "", nil
}

func (s *Session) rows(args []string) (string, error) {
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, row := range ws.Rows() {
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func (s *Session) clone(args []string) (string, error) {
	if err := wantArgs(args, 0, 1, "clone [title]"); err != nil {
		return "", err
	}
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	title := s.Doc.FreeTitle(ws.Title())
	if len(args) == 1 {
		title = args[0]
	}
	clone, err := s.Doc.CloneSheetAs(ws, title)
	if err != nil {
		return "", err
	}
	s.Current, s.dirty = clone, true
	return fmt.Sprintf("Cloned %q as %q (%s, %s)", ws.Title(), clone.Title(), clone.CodeName(), clone.Path()), nil
}

func (s *Session) rename(args []string) (string, error) {
	if err := wantArgs(args, 1, 1, "rename <title>"); err != nil {
		return "", err
	}
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	if err := ws.SetTitle(args[0]); err != nil {
		return "", err
	}
	s.dirty = true
	return "", nil
}

func (s *Session) remove(args []string) (string, error) {
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	if err := s.Doc.RemoveSheet(ws); err != nil {
		return "", err
	}
	s.Current = s.Doc.Sheets()[s.Doc.ActiveSheet()]
	s.dirty = true
	return fmt.Sprintf("Removed %q", ws.Title()), nil
}

func (s *Session) move(args []string) (string, error) {
	if err := wantArgs(args, 1, 1, "move <index>"); err != nil {
		return "", err
	}
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("tab position must be a number, got %q", args[0])
	}
	if err := s.Doc.MoveSheet(ws, index); err != nil {
		return "", err
	}
	s.dirty = true
	return "", nil
}

func (s *Session) activate(args []string) (string, error) {
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	if err := s.Doc.SetActiveSheet(s.Doc.SheetIndex(ws)); err != nil {
		return "", err
	}
	s.dirty = true
	return "", nil
}

func (s *Session) parts(args []string) (string, error) {
	ws, err := s.current()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for _, d := range ws.Drawings() {
		fmt.Fprintf(tw, "drawing\t%s\t%s\t%d anchors\n", d.Path(), d.RelID(), len(d.Anchors()))
	}
	for _, kind := range workbook.AllKinds {
		for _, p := range ws.OpaqueParts(kind) {
			where := p.Path
			if where == "" {
				where = "(inline)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d bytes\n", kind, where, p.RelID, len(p.Payload))
		}
	}
	tw.Flush()
	return sb.String(), nil
}

func (s *Session) paths(args []string) (string, error) {
	doc, err := s.document()
	if err != nil {
		return "", err
	}
	paths, err := doc.Paths()
	if err != nil {
		return "", err
	}
	return strings.Join(paths, "\n"), nil
}

func (s *Session) save(args []string) (string, error) {
	if err := wantArgs(args, 0, 1, "save [file]"); err != nil {
		return "", err
	}
	doc, err := s.document()
	if err != nil {
		return "", err
	}
	path := s.Path
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return "", fmt.Errorf("new workbook — use 'save <file>'")
	}
	if err := workbook.SaveAs(doc, path, s.Save); err != nil {
		return "", err
	}
	s.Path, s.dirty = path, false
	return fmt.Sprintf("Saved %s", path), nil
}
