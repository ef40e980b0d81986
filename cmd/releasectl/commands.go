package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"releasefinder/internal/conversation"
	"releasefinder/internal/domain"
	"releasefinder/internal/pager"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string
	var pageFlag int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search releases, falling through engines until one has results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := parseEngineFlag(engineFlag)
			if err != nil {
				return err
			}
			_, chat := ctx.services()
			page, err := chat.Search(cmd.Context(), cliUser, strings.Join(args, " "), engine)
			if err == nil && pageFlag > 1 {
				page, err = chat.GetPage(cmd.Context(), cliUser, pageFlag-1)
			}
			return printPage(cmd, ctx, page, err)
		},
	}
	cmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "Search only this engine (musicbrainz, discogs, bandcamp)")
	cmd.Flags().IntVarP(&pageFlag, "page", "p", 1, "Page to show, starting at 1")
	return cmd
}

func newDigCommand(ctx *commandContext) *cobra.Command {
	var fromFlag string

	cmd := &cobra.Command{
		Use:   "dig <query>",
		Short: "Search one engine and dig into the next deeper one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseEngineFlag(fromFlag)
			if err != nil {
				return err
			}
			if from == "" {
				from = domain.SearchEngineOrder[0]
			}
			_, chat := ctx.services()
			page, err := chat.Search(cmd.Context(), cliUser, strings.Join(args, " "), from)
			if err != nil && !errors.Is(err, domain.ErrNoResults) {
				return printPage(cmd, ctx, page, err)
			}
			page, err = chat.Escalate(cmd.Context(), cliUser)
			return printPage(cmd, ctx, page, err)
		},
	}
	cmd.Flags().StringVar(&fromFlag, "from", "", "Engine to dig from (default: the first engine)")
	return cmd
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var optionsFlag string
	var engineFlag string
	var releaseFlag int

	cmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Rank download options for one release of a search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := readOptions(cmd.InOrStdin(), optionsFlag)
			if err != nil {
				return err
			}
			_, chat := ctx.services()
			release, err := pickRelease(cmd, chat, strings.Join(args, " "), releaseFlag)
			if err != nil {
				return userError(err)
			}
			result, err := chat.AnalyzeDownloadOptions(cmd.Context(), cliUser, release.ID, domain.ParseDownloadEngine(engineFlag), options)
			if err != nil {
				return userError(err)
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, result)
			}
			printAnalysis(cmd.OutOrStdout(), release, result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&optionsFlag, "options", "o", "-", "JSON file with download options ('-' reads stdin)")
	cmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "Download engine that produced the options (default: taken from the options)")
	cmd.Flags().IntVarP(&releaseFlag, "release", "r", 1, "Position of the release in the search results, starting at 1")
	return cmd
}

func newFolderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "folder <name>",
		Short: "Recognize artist and album from a folder name and search for them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, chat := ctx.services()
			info, page, err := chat.IdentifyFolder(cmd.Context(), cliUser, strings.Join(args, " "))
			if err != nil && !errors.Is(err, domain.ErrNoResults) {
				return userError(err)
			}
			if !ctx.jsonOutput {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Artist: %s\nAlbum:  %s\n", info.Artist, info.Album)
				if info.Year != "" {
					fmt.Fprintf(out, "Year:   %s\n", info.Year)
				}
			}
			return printPage(cmd, ctx, page, err)
		},
	}
}

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured metadata engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			searcher, _ := ctx.services()
			infos := searcher.Providers()
			if ctx.jsonOutput {
				return writeJSON(cmd, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers configured.")
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for i, info := range infos {
				rows = append(rows, []string{strconv.Itoa(i + 1), string(info.Engine), info.Label, info.Kind})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Engine", "Label", "Kind"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func parseEngineFlag(raw string) (domain.SearchEngine, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	engine, ok := domain.ParseSearchEngine(raw)
	if !ok {
		return "", fmt.Errorf("unknown engine %q", raw)
	}
	return engine, nil
}

// userError replaces known failures with their user-facing text.
func userError(err error) error {
	if conversation.IsUserFacing(err) {
		return errors.New(conversation.ErrorMessage(err))
	}
	return err
}

func printPage(cmd *cobra.Command, ctx *commandContext, page domain.Page, err error) error {
	out := cmd.OutOrStdout()
	if errors.Is(err, domain.ErrNoResults) {
		if ctx.jsonOutput {
			return writeJSON(cmd, page)
		}
		fmt.Fprintln(out, conversation.RenderError(err, page)[0].Text)
		if page.CanDigDeeper {
			fmt.Fprintln(out, "Run `releasectl dig` to try the next engine.")
		}
		return nil
	}
	if err != nil {
		return userError(err)
	}
	if ctx.jsonOutput {
		return writeJSON(cmd, page)
	}

	fmt.Fprintln(out, page.Header)
	rows := make([][]string, 0, len(page.Items))
	for i, item := range page.Items {
		rows = append(rows, []string{
			strconv.Itoa(page.Index*pager.DefaultPageSize + i + 1),
			item.Artist,
			item.Title,
			item.Years,
			item.Types,
			item.Tracks,
			item.ID,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Artist", "Title", "Years", "Format", "Tracks", "ID"},
		rows,
		[]columnAlignment{alignRight},
	))
	if page.More != nil {
		fmt.Fprintf(out, "%d more; use --page %d\n", page.More.Remaining, page.More.NextPage+1)
	}
	return nil
}

func pickRelease(cmd *cobra.Command, chat *conversation.Service, query string, position int) (domain.ReleaseSummary, error) {
	if position < 1 {
		return domain.ReleaseSummary{}, fmt.Errorf("%w: release position starts at 1", domain.ErrOptionOutOfRange)
	}
	if _, err := chat.Search(cmd.Context(), cliUser, query, ""); err != nil {
		return domain.ReleaseSummary{}, err
	}
	index := (position - 1) / pager.DefaultPageSize
	page, err := chat.GetPage(cmd.Context(), cliUser, index)
	if err != nil {
		if errors.Is(err, domain.ErrEndOfResults) {
			return domain.ReleaseSummary{}, fmt.Errorf("%w: release %d", domain.ErrOptionOutOfRange, position)
		}
		return domain.ReleaseSummary{}, err
	}
	offset := (position - 1) % pager.DefaultPageSize
	if offset >= len(page.Items) {
		return domain.ReleaseSummary{}, fmt.Errorf("%w: release %d", domain.ErrOptionOutOfRange, position)
	}
	return page.Items[offset], nil
}

func readOptions(stdin io.Reader, path string) ([]domain.DownloadOption, error) {
	var reader io.Reader
	if path == "" || path == "-" {
		reader = stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open options: %w", err)
		}
		defer file.Close()
		reader = file
	}
	var options []domain.DownloadOption
	if err := json.NewDecoder(reader).Decode(&options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return options, nil
}

func printAnalysis(out io.Writer, release domain.ReleaseSummary, result domain.AnalysisResult) {
	fmt.Fprintf(out, "%s – %s\n", release.Artist, release.Title)
	if len(result.Reports) == 0 {
		fmt.Fprintln(out, conversation.RenderAnalysis(result)[0].Text)
		return
	}
	rows := make([][]string, 0, len(result.Reports))
	for i, report := range result.Reports {
		option := report.Option
		source := option.DistributorName
		if source == "" {
			source = option.SourceName
		}
		size := "-"
		if option.TotalSizeMB > 0 {
			size = strconv.Itoa(option.TotalSizeMB) + " MB"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			report.Glyph + " " + report.Suitability.String(),
			source,
			strconv.Itoa(len(option.Files)),
			size,
			option.ID,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Fit", "Source", "Files", "Size", "Option"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	if result.AutoDownload {
		fmt.Fprintln(out, "Single option: would download automatically.")
	}
	if result.FallbackEngine != "" {
		fmt.Fprintf(out, "Fallback engine: %s\n", result.FallbackEngine.Label())
	}
}
