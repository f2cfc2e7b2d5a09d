package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/ballotbox/internal/cli/output"
	"github.com/leapstack-labs/ballotbox/internal/page"
	"github.com/leapstack-labs/ballotbox/internal/pagestate"
	"github.com/leapstack-labs/ballotbox/internal/poll"
)

// settleDelay is how long regions must stay unchanged after the page
// state completes. Decoupled queries such as vote counts land in it.
const settleDelay = 150 * time.Millisecond

// RenderOptions holds options for the render command.
type RenderOptions struct {
	Poll    string
	Params  []string
	Timeout time.Duration
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render SECTION NAME",
		Short: "Load a page state headlessly and print its regions",
		Long: `Activate a page state against the backend without a browser and print
the regions it renders once every query step has been delivered.

Output adapts to environment:
  - Terminal: Styled headers with region text
  - Piped/Scripted: Markdown
  - JSON: Regions with their markdown and versions`,
		Example: `  # Show the poll list
  ballotbox render polls list

  # Show one poll with its questions and answers
  ballotbox render poll detail --poll p1

  # Show current results as JSON
  ballotbox render poll results --poll p1 -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Poll, "poll", "", "Poll id")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "Extra activation parameter as key=value (repeatable)")
	cmd.Flags().DurationVar(&opts.Timeout, "wait", 10*time.Second, "How long to wait for the page state to complete")

	return cmd
}

func runRender(cmd *cobra.Command, section, name string, opts *RenderOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	params, err := renderParams(opts)
	if err != nil {
		return err
	}
	seeds, err := poll.Seeds(section, name, params)
	if err != nil {
		return err
	}

	p, err := poll.NewPage(poll.Config{
		PageSize: cmdCtx.Cfg.Backend.PageSize,
		Logger:   cmdCtx.Logger,
	}, cmdCtx.Client, "")
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(cmd.Context())
	defer func() {
		stop()
		<-p.Done()
	}()
	go func() { _ = p.Run(runCtx) }()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	if err := p.Open(ctx, section, name, seeds...); err != nil {
		return fmt.Errorf("failed to open %s/%s: %w", section, name, err)
	}

	result, err := awaitPage(ctx, p, section, name)
	if err != nil {
		return err
	}
	result.Regions, err = regionOutputs(cmd.Context(), p.Regions())
	if err != nil {
		return err
	}

	if err := writeRender(cmdCtx.Renderer, result); err != nil {
		return err
	}
	if !result.Complete {
		return fmt.Errorf("%s/%s did not complete within %s", section, name, opts.Timeout)
	}
	return nil
}

func renderParams(opts *RenderOptions) (url.Values, error) {
	params := url.Values{}
	for _, kv := range opts.Params {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", kv)
		}
		params.Add(key, value)
	}
	if opts.Poll != "" {
		params.Set("poll", opts.Poll)
	}
	return params, nil
}

// awaitPage waits until the page state has completed and the regions have
// settled, or until ctx is done. The returned output is marked incomplete
// when ctx expired first.
func awaitPage(ctx context.Context, p *page.Page, section, name string) (output.RenderOutput, error) {
	out := output.RenderOutput{Section: section, State: name}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var (
		version   uint64
		stableFor time.Duration
	)
	for {
		var (
			stopped  bool
			complete bool
			steps    []output.StepOutput
		)
		err := p.Inspect(context.WithoutCancel(ctx), func(reg *pagestate.Registry) {
			ps, ok := reg.Lookup(section, name)
			if !ok {
				return
			}
			stopped = !ps.Active()
			complete = ps.Resolved()
			for _, step := range ps.Steps() {
				// A completed cycle has reset its steps for the next one.
				state := step.State
				if complete {
					state = pagestate.Delivered
				}
				steps = append(steps, output.StepOutput{Query: step.Name, State: state.String()})
			}
		})
		if err != nil {
			return out, err
		}
		out.Complete = complete
		out.Steps = steps

		if stopped && !complete {
			return out, nil
		}
		if complete {
			if v := p.Regions().Version(); v != version {
				version = v
				stableFor = 0
			} else if stableFor >= settleDelay {
				return out, nil
			}
		}

		select {
		case <-ctx.Done():
			return out, nil
		case <-ticker.C:
			if complete {
				stableFor += 20 * time.Millisecond
			}
		}
	}
}

// regionOutputs converts every region to markdown, oldest first.
func regionOutputs(ctx context.Context, regions *page.Regions) ([]output.RegionOutput, error) {
	all, _ := regions.Since(0)
	out := make([]output.RegionOutput, 0, len(all))
	for _, rg := range all {
		var sb strings.Builder
		if err := rg.Render(ctx, &sb); err != nil {
			return nil, fmt.Errorf("failed to render region %s: %w", rg.ID, err)
		}
		md, err := htmltomarkdown.ConvertString(sb.String())
		if err != nil {
			return nil, fmt.Errorf("failed to convert region %s: %w", rg.ID, err)
		}
		out = append(out, output.RegionOutput{
			ID:       rg.ID,
			Owner:    rg.Owner,
			Version:  rg.Version,
			Markdown: strings.TrimSpace(md),
		})
	}
	return out, nil
}

func writeRender(r *output.Renderer, result output.RenderOutput) error {
	title := cases.Title(language.English).String(result.Section + " " + result.State)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(result)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, title))
		r.Println("")
		for _, rg := range result.Regions {
			if rg.Markdown == "" {
				continue
			}
			r.Println(output.FormatHeader(2, rg.ID))
			r.Println("")
			r.Println(rg.Markdown)
			r.Println("")
		}
	default:
		r.Header(1, title)
		for _, step := range result.Steps {
			r.StatusLine(step.Query, step.State, "")
		}
		r.Println("")
		for _, rg := range result.Regions {
			if rg.Markdown == "" {
				continue
			}
			r.Header(2, rg.ID)
			r.Println(rg.Markdown)
			r.Println("")
		}
	}
	return nil
}
