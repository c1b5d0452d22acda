// Package cli is the command interpreter behind the nutricalc terminal client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/natefinch/atomic"

	"github.com/pageza/nutricalc/backend/config"
	"github.com/pageza/nutricalc/backend/internal/nutrition"
	"github.com/pageza/nutricalc/backend/internal/service"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

// listSep separates names in commands taking several of them, since food
// names contain spaces and commas.
const listSep = ";"

// Commands lists the shell commands, for help and completion.
var Commands = []string{
	"add", "set", "rm", "del", "group", "ungroup", "track", "pathology", "days",
	"show", "foods", "portions", "load", "save", "export", "clear", "help", "quit",
}

// Shell runs text commands against a meal.
type Shell struct {
	meal    service.IMealService
	catalog service.CatalogStore
	supply  []nutrition.EnergySupply
	out     io.Writer
}

func NewShell(meal service.IMealService, catalog service.CatalogStore, engine config.EngineConfig, out io.Writer) *Shell {
	return &Shell{
		meal:    meal,
		catalog: catalog,
		supply:  engine.Supply(),
		out:     out,
	}
}

// Exec runs one command line. Empty lines are ignored.
func (s *Shell) Exec(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return ErrQuit
	case "help", "?":
		s.printHelp()
		return nil
	case "add":
		return s.cmdAdd(ctx, rest, true)
	case "set":
		return s.cmdAdd(ctx, rest, false)
	case "rm":
		names := splitList(rest)
		if err := s.requireInMeal(ctx, names); err != nil {
			return err
		}
		return s.meal.RemoveFoods(ctx, names, false)
	case "del":
		if rest == "" {
			return errors.New("usage: del <food>")
		}
		if err := s.requireInMeal(ctx, []string{rest}); err != nil {
			return err
		}
		return s.meal.RemoveFoods(ctx, []string{rest}, true)
	case "group":
		return s.cmdGroup(ctx, rest)
	case "ungroup":
		if err := s.requireInMeal(ctx, []string{rest}); err != nil {
			return err
		}
		return s.meal.UngroupFood(ctx, rest)
	case "track":
		return s.cmdTrack(ctx, rest)
	case "pathology":
		return s.meal.TrackPathology(ctx, rest)
	case "days":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("usage: days <n>")
		}
		return s.meal.SetDays(n)
	case "show":
		return s.cmdShow(ctx)
	case "foods":
		return s.cmdFoods(ctx, rest)
	case "portions":
		return s.cmdPortions(ctx, rest)
	case "load":
		return s.meal.LoadPortion(ctx, rest)
	case "save":
		return s.cmdSave(ctx, rest)
	case "export":
		return s.cmdExport(ctx, rest)
	case "clear":
		return s.meal.Clear()
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

// Complete returns the commands starting with line
func (s *Shell) Complete(line string) []string {
	var out []string
	for _, c := range Commands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}
	return out
}

func splitList(text string) []string {
	var out []string
	for _, part := range strings.Split(text, listSep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// cmdAdd parses "<quantity> <food name>"
func (s *Shell) cmdAdd(ctx context.Context, rest string, add bool) error {
	qty, name, ok := strings.Cut(rest, " ")
	if !ok {
		return errors.New("usage: add|set <grams> <food>")
	}
	return s.meal.AddFood(ctx, name, qty, add)
}

// cmdGroup parses "<family>; <name>; <food>; <food>..."
func (s *Shell) cmdGroup(ctx context.Context, rest string) error {
	parts := strings.Split(rest, listSep)
	if len(parts) < 3 {
		return errors.New("usage: group <family>; <name>; <food>; <food>...")
	}
	names := splitList(strings.Join(parts[2:], listSep))
	if err := s.requireInMeal(ctx, names); err != nil {
		return err
	}
	return s.meal.GroupFoods(ctx, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), names)
}

// requireInMeal rejects names that are not lines of the meal
func (s *Shell) requireInMeal(ctx context.Context, names []string) error {
	view, err := s.meal.View(ctx)
	if err != nil {
		return err
	}
	lines := make(map[string]bool, len(view.Foods))
	for _, f := range view.Foods {
		lines[f.Name] = true
	}
	for _, name := range names {
		if !lines[name] {
			return nutrition.UserErrorf("select", "%w: %s", nutrition.ErrFoodNotInMeal, name)
		}
	}
	return nil
}

func (s *Shell) cmdTrack(ctx context.Context, rest string) error {
	var codes []nutrition.NutrientCode
	for _, f := range strings.Fields(rest) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return fmt.Errorf("invalid nutrient code %q", f)
		}
		codes = append(codes, nutrition.NutrientCode(n))
	}
	return s.meal.ChangeTrackedNutrients(ctx, codes)
}

func (s *Shell) cmdSave(ctx context.Context, rest string) error {
	parts := strings.SplitN(rest, listSep, 2)
	name := strings.TrimSpace(parts[0])
	patient := ""
	if len(parts) == 2 {
		patient = strings.TrimSpace(parts[1])
	}
	id, err := s.meal.SavePortion(ctx, name, patient, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved portion %s\n", id)
	return nil
}

func (s *Shell) cmdShow(ctx context.Context) error {
	view, err := s.meal.View(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Food", "g"}
	for _, n := range view.Nutrients {
		header = append(header, shortName(n))
	}
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

	for _, f := range view.Foods {
		row := []string{f.Name, strconv.FormatFloat(f.Quantity, 'f', -1, 64)}
		for _, n := range view.Nutrients {
			row = append(row, f.Values[n.Code])
		}
		fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}

	total := []string{view.Total.Label, strconv.FormatFloat(view.Total.Quantity, 'f', -1, 64)}
	for _, n := range view.Nutrients {
		total = append(total, view.Total.Values[n.Code])
	}
	fmt.Fprintln(w, strings.Join(total, "\t")+"\t")
	if err := w.Flush(); err != nil {
		return err
	}

	names := s.nutrientNames(view.Nutrients)
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "Days: %d\n", view.Days)
	if !view.Energy.HasData {
		fmt.Fprintf(s.out, "Energy: %s\n", nutrition.NoData)
	}
	for i, sup := range s.supply {
		if !view.Energy.HasData || i >= len(view.Energy.Ratios) {
			break
		}
		fmt.Fprintf(s.out, "Energy from %s: %s%% (%s kcal)\n", names[sup.Code], view.Energy.Ratios[i], view.Energy.Contributions[i])
	}
	status := "sufficient"
	if !view.Water.Sufficient {
		status = "insufficient"
	}
	if !view.Water.HasData {
		status = nutrition.NoData
	}
	fmt.Fprintf(s.out, "Water: %s supplied, %s needed (%s)\n", view.Water.Supplied, view.Water.Needed, status)
	return nil
}

func shortName(n nutrition.NutrientDefinition) string {
	if n.ShortName != "" {
		return n.ShortName
	}
	return n.Name
}

func (s *Shell) nutrientNames(defs []nutrition.NutrientDefinition) map[nutrition.NutrientCode]string {
	names := make(map[nutrition.NutrientCode]string, len(defs))
	for _, d := range defs {
		names[d.Code] = shortName(d)
	}
	for _, sup := range s.supply {
		if _, ok := names[sup.Code]; !ok {
			names[sup.Code] = strconv.Itoa(int(sup.Code))
		}
	}
	return names
}

func (s *Shell) cmdFoods(ctx context.Context, family string) error {
	if family == "" {
		families, err := s.catalog.ListFamilies(ctx)
		if err != nil {
			return err
		}
		for _, f := range families {
			fmt.Fprintln(s.out, f)
		}
		return nil
	}
	foods, err := s.catalog.ListFoods(ctx, family)
	if err != nil {
		return err
	}
	sort.Slice(foods, func(i, j int) bool { return foods[i].Name < foods[j].Name })
	for _, f := range foods {
		fmt.Fprintf(s.out, "%6d  %s\n", f.Code, f.Name)
	}
	return nil
}

func (s *Shell) cmdPortions(ctx context.Context, patient string) error {
	portions, err := s.catalog.ListPortions(ctx, patient)
	if err != nil {
		return err
	}
	for _, p := range portions {
		fmt.Fprintf(s.out, "%s  %s  %s  %s\n", p.ID, p.Date.Format("2006-01-02"), p.Name, p.Patient)
	}
	return nil
}

// cmdExport writes the meal report as JSON to the given file
func (s *Shell) cmdExport(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("usage: export <file>")
	}
	view, err := s.meal.View(ctx)
	if err != nil {
		return err
	}
	data, err := service.NewReport("Meal", "", view).Marshal()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(s.out, "Exported to %s\n", path)
	return nil
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  add <g> <food>                  add grams of a food
  set <g> <food>                  set the quantity of a food
  rm <food>[; <food>...]          remove foods from the meal
  del <food>                      remove a food and delete it from the store
  group <family>; <name>; <food>; <food>...
                                  replace foods by a new group food
  ungroup <food>                  replace a group by its parts
  track [code...]                 set the tracked nutrients
  pathology <name>                track the nutrients of a pathology
  days <n>                        number of days the meal covers
  show                            print the meal
  foods [family]                  list families, or the foods of one
  portions [patient]              list saved portions
  load <id>                       load a saved portion
  save <name>[; <patient>]        save the meal as a portion
  export <file>                   write the meal report as JSON
  clear                           empty the meal
  help                            this text
  quit                            leave
`)
}
