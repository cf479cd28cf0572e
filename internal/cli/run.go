package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-converter-agent/internal/convert"
	"github.com/nerdneilsfield/go-converter-agent/internal/docx"
	"github.com/nerdneilsfield/go-converter-agent/internal/pdf"
)

var (
	outputPath string
	rulesPath  string
	setPairs   []string
)

func newFlattenCommand() *cobra.Command {
	flattenCmd := &cobra.Command{
		Use:   "flatten [flags] file.docx [file.docx ...]",
		Short: "Unwrap converter text boxes in DOCX files",
		Long: `flatten promotes the paragraphs inside anchored text boxes to the top
level of the document body and drops repeated text, normalizing DOCX files
produced by a PDF import. Files that contain no text boxes pass through
unchanged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSingleOutput(args); err != nil {
				return err
			}
			_, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			flattener := docx.NewFlattener(log)
			results := processFiles(args,
				func(p string) string { return resolveOutput(p, "_flattened", ".docx") },
				func(res *fileResult, data []byte) ([]byte, error) {
					out, stats := flattener.Flatten(data)
					res.TextboxesRemoved = stats.TextboxesRemoved
					res.DuplicatesRemoved = stats.DuplicatesRemoved
					return out, nil
				})

			printSummary(cmd.OutOrStdout(), "Flatten Summary", results)
			return summaryError(results)
		},
	}

	flattenCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (single input only)")
	return flattenCmd
}

func newReplaceCommand() *cobra.Command {
	replaceCmd := &cobra.Command{
		Use:   "replace [flags] file.docx [file.docx ...]",
		Short: "Replace text in DOCX files",
		Long: `replace substitutes exact strings in the document text while keeping
run formatting intact. Rules come from repeated --set pairs, a TOML rules
file, or both; --set wins on conflict.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSingleOutput(args); err != nil {
				return err
			}
			rules, err := requireRules()
			if err != nil {
				return err
			}
			_, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			replacer := docx.NewReplacer(log)
			results := processFiles(args,
				func(p string) string { return resolveOutput(p, "_replaced", ".docx") },
				func(res *fileResult, data []byte) ([]byte, error) {
					out, n, err := replacer.Replace(data, rules)
					res.Substitutions = n
					return out, err
				})

			printSummary(cmd.OutOrStdout(), "Replace Summary", results)
			return summaryError(results)
		},
	}

	addRuleFlags(replaceCmd)
	return replaceCmd
}

func newReplacePDFCommand() *cobra.Command {
	replacePDFCmd := &cobra.Command{
		Use:   "replace-pdf [flags] file.pdf [file.pdf ...]",
		Short: "Replace text in PDF files",
		Long: `replace-pdf substitutes exact strings directly in PDF page content.
Matched text is removed from the content stream, painted over, and the
replacement is inserted at the same position in a matching style.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSingleOutput(args); err != nil {
				return err
			}
			rules, err := requireRules()
			if err != nil {
				return err
			}
			_, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			replacer := pdf.NewReplacer(log)
			results := processFiles(args,
				func(p string) string { return resolveOutput(p, "_replaced", ".pdf") },
				func(res *fileResult, data []byte) ([]byte, error) {
					out, n, err := replacer.Replace(data, rules)
					res.Substitutions = n
					return out, err
				})

			printSummary(cmd.OutOrStdout(), "PDF Replace Summary", results)
			return summaryError(results)
		},
	}

	addRuleFlags(replacePDFCmd)
	return replacePDFCmd
}

func newConvertCommand() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert [flags] file.pdf|file.docx [more ...]",
		Short: "Convert between PDF and DOCX with LibreOffice",
		Long: `convert turns PDFs into DOCX files and DOCX files into PDFs, picking
the direction from each input's extension. PDF inputs are flattened after
conversion. Replacement rules, when given, are applied on the DOCX side:
after flattening for PDF inputs, before conversion for DOCX inputs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkSingleOutput(args); err != nil {
				return err
			}
			rules, err := loadRules(rulesPath, setPairs)
			if err != nil {
				return err
			}
			cfg, log, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			engine := convert.NewEngine(cfg.SofficePath, cfg.TempDir, cfg.Timeout(), log)
			flattener := docx.NewFlattener(log)
			replacer := docx.NewReplacer(log)
			ctx := cmd.Context()

			results := processFiles(args,
				func(p string) string {
					if strings.EqualFold(filepath.Ext(p), ".pdf") {
						return resolveOutput(p, "", ".docx")
					}
					return resolveOutput(p, "", ".pdf")
				},
				func(res *fileResult, data []byte) ([]byte, error) {
					switch strings.ToLower(filepath.Ext(res.Input)) {
					case ".pdf":
						converted, err := engine.PDFToDOCX(ctx, data)
						if err != nil {
							return nil, err
						}
						flattened, stats := flattener.Flatten(converted)
						res.TextboxesRemoved = stats.TextboxesRemoved
						res.DuplicatesRemoved = stats.DuplicatesRemoved
						if len(rules) == 0 {
							return flattened, nil
						}
						replaced, n, err := replacer.Replace(flattened, rules)
						res.Substitutions = n
						return replaced, err
					case ".docx":
						if len(rules) > 0 {
							replaced, n, err := replacer.Replace(data, rules)
							if err != nil {
								return nil, err
							}
							res.Substitutions = n
							data = replaced
						}
						return engine.DOCXToPDF(ctx, data)
					default:
						return nil, fmt.Errorf("unsupported extension %q, want .pdf or .docx", filepath.Ext(res.Input))
					}
				})

			printSummary(cmd.OutOrStdout(), "Convert Summary", results)
			return summaryError(results)
		},
	}

	addRuleFlags(convertCmd)
	return convertCmd
}

func addRuleFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (single input only)")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "TOML rules file with a [replacements] table")
	cmd.Flags().StringArrayVar(&setPairs, "set", nil, "replacement as old=new (repeatable)")
}

// requireRules loads rules and rejects an empty rule set.
func requireRules() (map[string]string, error) {
	rules, err := loadRules(rulesPath, setPairs)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no replacement rules given, use --set or --rules")
	}
	return rules, nil
}

func checkSingleOutput(args []string) error {
	if outputPath != "" && len(args) > 1 {
		return fmt.Errorf("--output is only valid with a single input file")
	}
	return nil
}

// resolveOutput names the output file for an input: the explicit --output
// when given, otherwise the input path with a suffix and target extension.
func resolveOutput(path, suffix, ext string) string {
	if outputPath != "" {
		return outputPath
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + suffix + ext
}

// processFiles runs one mutation over every input file, writing each result
// to its resolved output path. A failed input is reported in its result and
// does not stop the batch.
func processFiles(args []string, outFor func(string) string, mutate func(*fileResult, []byte) ([]byte, error)) []fileResult {
	results := make([]fileResult, 0, len(args))
	for _, path := range args {
		res := fileResult{Input: path, Output: outFor(path)}
		data, err := os.ReadFile(path)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		out, err := mutate(&res, data)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}
		if err := os.WriteFile(res.Output, out, 0o644); err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}
