package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"replaylab/internal/indicator"
	"replaylab/internal/market"
)

const (
	colorBackground  = "#060c1b"
	colorTextPrimary = "#eceff4"
	colorBull        = "#34d399"
	colorBear        = "#f87171"
	colorMA          = "#3b82f6"

	defaultWidthPx = 1200
	klineHeightPx  = 560
)

// ChartInput 描述一次图表导出：可见前缀 + 可选 MA 叠加。
type ChartInput struct {
	Symbol   string
	Interval string
	Candles  []market.Candle
	MA       []indicator.Point
	MAPeriod int
	WidthPx  int
}

// RenderHTML 用 go-echarts 生成 K 线页面（离线资源内联由前端模板负责）。
func RenderHTML(input ChartInput) ([]byte, error) {
	if len(input.Candles) == 0 {
		return nil, fmt.Errorf("no candles to render")
	}
	width := input.WidthPx
	if width <= 0 {
		width = defaultWidthPx
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			BackgroundColor: colorBackground,
			Width:           fmt.Sprintf("%dpx", width),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s %s replay", strings.ToUpper(input.Symbol), input.Interval),
			TitleStyle: &opts.TextStyle{
				Color: colorTextPrimary,
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	)

	xAxis := make([]string, 0, len(input.Candles))
	klineData := make([]opts.KlineData, 0, len(input.Candles))
	for _, c := range input.Candles {
		xAxis = append(xAxis, time.UnixMilli(c.OpenTime).UTC().Format("01-02 15:04"))
		klineData = append(klineData, opts.KlineData{
			Value: [4]float64{c.Open, c.Close, c.Low, c.High},
		})
	}
	kline.SetXAxis(xAxis).AddSeries("kline", klineData,
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	if len(input.MA) > 0 {
		line := charts.NewLine()
		// MA 序列比 K 线短 period-1 个点，前面补空保持横轴对齐。
		pad := len(input.Candles) - len(input.MA)
		if pad < 0 {
			pad = 0
		}
		lineData := make([]opts.LineData, 0, len(input.Candles))
		for i := 0; i < pad; i++ {
			lineData = append(lineData, opts.LineData{Value: nil})
		}
		for _, p := range input.MA {
			lineData = append(lineData, opts.LineData{Value: p.Value})
		}
		line.SetXAxis(xAxis).AddSeries(fmt.Sprintf("MA%d", input.MAPeriod), lineData,
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorMA, Width: 1.5}),
		)
		kline.Overlap(line)
	}

	var buf bytes.Buffer
	if err := kline.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable 探测一次 headless Chrome 是否可用。
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		probeCtx, probeCancel := context.WithTimeout(parent, 10*time.Second)
		defer probeCancel()
		headlessErr = chromedp.Run(probeCtx)
	})
	return headlessErr
}

// RenderPNG 把 HTML 交给 headless Chrome 截图。
func RenderPNG(ctx context.Context, input ChartInput) ([]byte, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, fmt.Errorf("headless chrome unavailable: %w", err)
	}
	html, err := RenderHTML(input)
	if err != nil {
		return nil, err
	}
	width := input.WidthPx
	if width <= 0 {
		width = defaultWidthPx
	}
	return renderHTMLToPNG(ctx, html, width, klineHeightPx+80)
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
