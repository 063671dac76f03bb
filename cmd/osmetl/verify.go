package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osm-data-etl/internal/adapter/jsonl"
	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

var verifySource string

var errVerifyFailed = errors.New("verification failed")

// phase tracks pass/fail for a verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

var verifyCmd = &cobra.Command{
	Use:   "verify <records.json>",
	Short: "Check shaped output for schema, key safety and identity problems",
	Long: "Re-reads jsonl output and checks that every record has the shape its type " +
		"requires, that no unsafe or nested address key leaked through, and that no " +
		"element appears twice. With --source, the record count is compared to the " +
		"recognized elements of the original document.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open records: %w", err)
		}
		defer f.Close()

		var records []domain.Record
		if err := jsonl.Read(f, func(r domain.Record) error {
			records = append(records, r)
			return nil
		}); err != nil {
			return err
		}

		phases := []*phase{
			verifyShape(records),
			verifyKeys(records),
			verifyIdentity(records),
		}
		if verifySource != "" {
			p, err := verifySourceParity(cmd.Context(), records, verifySource)
			if err != nil {
				return err
			}
			phases = append(phases, p)
		}

		if !report(cmd.OutOrStdout(), phases, len(records)) {
			return errVerifyFailed
		}
		return nil
	},
}

// report prints a pass/fail table followed by detailed errors. It returns
// whether every phase passed.
func report(w io.Writer, phases []*phase, count int) bool {
	fmt.Fprintln(w, "=== OSM Record Verification ===")
	fmt.Fprintln(w)

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}
	fmt.Fprintf(w, "\nRecords: %d\n", count)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll verifications passed.")
	} else {
		fmt.Fprintln(w, "\nVerification FAILED.")
	}
	return allPassed
}

// verifyShape checks that each record carries exactly the fields its type allows.
func verifyShape(records []domain.Record) *phase {
	p := &phase{name: "Record shape"}
	for _, r := range records {
		key := r.Key()
		switch r.Type {
		case domain.KindPoint:
			if r.Position == nil {
				p.errorf("%s: point without position", key)
			}
		case domain.KindPath, domain.KindRelation:
			if r.Position != nil {
				p.errorf("%s: %s with position", key, r.Type)
			}
		default:
			p.errorf("%s: unknown type %q", key, r.Type)
			continue
		}
		if len(r.NodeRefs) > 0 && r.Type != domain.KindPath {
			p.errorf("%s: node_refs on a %s", key, r.Type)
		}
		if len(r.Members) > 0 && r.Type != domain.KindRelation {
			p.errorf("%s: member list on a %s", key, r.Type)
		}
	}
	return p
}

// verifyKeys checks that no tag with a problem character or a nested address
// key reached the output.
func verifyKeys(records []domain.Record) *phase {
	p := &phase{name: "Key safety"}
	for _, r := range records {
		for k := range r.Address {
			if k == "" || strings.Contains(k, ":") || domain.IsUnsafeKey(k) {
				p.errorf("%s: address key %q", r.Key(), k)
			}
		}
		for k := range r.Extra {
			if domain.IsUnsafeKey(k) {
				p.errorf("%s: unsafe key %q", r.Key(), k)
			}
			if strings.HasPrefix(k, "addr:") {
				p.errorf("%s: address key %q outside address", r.Key(), k)
			}
		}
	}
	return p
}

// verifyIdentity checks that every (type, id) pair appears once.
func verifyIdentity(records []domain.Record) *phase {
	p := &phase{name: "Record identity"}
	seen := make(map[string]int, len(records))
	for i, r := range records {
		key := r.Key()
		if first, dup := seen[key]; dup {
			p.errorf("%s: records %d and %d", key, first+1, i+1)
			continue
		}
		seen[key] = i
	}
	return p
}

// verifySourceParity compares record counts per type with the recognized
// elements of the source document.
func verifySourceParity(ctx context.Context, records []domain.Record, source string) (*phase, error) {
	p := &phase{name: "Source parity"}

	src, closer, err := openDocument(source)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	want := make(map[domain.Kind]int)
	for el, err := range src.All() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if k := el.Kind(); k != domain.KindUnknown {
			want[k]++
		}
	}

	got := make(map[domain.Kind]int)
	for _, r := range records {
		got[r.Type]++
	}

	for _, k := range []domain.Kind{domain.KindPoint, domain.KindPath, domain.KindRelation} {
		if want[k] != got[k] {
			p.errorf("%s: %d in source, %d records", k, want[k], got[k])
		}
	}
	return p, nil
}

func init() {
	verifyCmd.Flags().StringVar(&verifySource, "source", "", "OSM document the records were shaped from")
	rootCmd.AddCommand(verifyCmd)
}
