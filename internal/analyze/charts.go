package analyze

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

const (
	chartWidth  = 720
	chartHeight = 400
	plotTop     = 60
	plotBottom  = 340
	plotLeft    = 70
	plotRight   = 680
)

var chartPalette = []string{
	"#4c78a8", "#f58518", "#54a24b", "#e45756",
	"#72b7b2", "#eeca3b", "#b279a2", "#9d755d",
}

// VelocityChart renders completions per week for the trailing twelve weeks
// as an SVG bar chart.
func VelocityChart(views []taskView, now time.Time) string {
	const weeks = 12
	start := startOfWeek(now).AddDate(0, 0, -7*(weeks-1))

	counts := make([]int, weeks)
	for _, view := range views {
		if view.status != "done" {
			continue
		}
		completed := view.CompletedAt()
		if completed.IsZero() {
			completed = view.UpdatedAt()
		}
		if completed.IsZero() || completed.Before(start) {
			continue
		}
		bucket := int(completed.Sub(start).Hours() / (24 * 7))
		if bucket >= 0 && bucket < weeks {
			counts[bucket]++
		}
	}

	labels := make([]string, weeks)
	for i := range labels {
		labels[i] = start.AddDate(0, 0, 7*i).Format("Jan 02")
	}
	return barChart("Weekly Completion Velocity", labels, counts, chartPalette[0])
}

// StatusChart renders the status distribution as an SVG pie chart.
func StatusChart(views []taskView) string {
	counts := map[string]int{}
	for _, view := range views {
		counts[view.status]++
	}
	return PieChart("Task Status Distribution", counts)
}

// PriorityChart renders active task counts per priority as an SVG bar chart.
func PriorityChart(views []taskView) string {
	order := []string{"Critical", "High", "Medium", "Low", "Note", "Other"}
	counts := make([]int, len(order))
	for _, view := range views {
		if !view.active() {
			continue
		}
		score := view.priorityScore
		if score > 4 {
			score = 5
		}
		counts[score]++
	}
	return barChart("Active Tasks by Priority", order, counts, chartPalette[3])
}

func barChart(title string, labels []string, counts []int, fill string) string {
	maxCount := 1
	for _, count := range counts {
		if count > maxCount {
			maxCount = count
		}
	}

	var svg strings.Builder
	svgHeader(&svg, title)

	plotWidth := plotRight - plotLeft
	plotHeight := plotBottom - plotTop
	slot := float64(plotWidth) / float64(len(counts))
	barWidth := slot * 0.7

	// gridlines with value labels
	for step := 0; step <= 4; step++ {
		value := maxCount * step / 4
		y := float64(plotBottom) - float64(plotHeight)*float64(step)/4
		fmt.Fprintf(&svg, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#ddd"/>`,
			plotLeft, y, plotRight, y)
		fmt.Fprintf(&svg, `<text x="%d" y="%.1f" text-anchor="end" font-size="12" fill="#666">%d</text>`,
			plotLeft-8, y+4, value)
	}

	for i, count := range counts {
		barHeight := float64(plotHeight) * float64(count) / float64(maxCount)
		x := float64(plotLeft) + slot*float64(i) + (slot-barWidth)/2
		y := float64(plotBottom) - barHeight
		fmt.Fprintf(&svg, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`,
			x, y, barWidth, barHeight, fill)
		if count > 0 {
			fmt.Fprintf(&svg, `<text x="%.1f" y="%.1f" text-anchor="middle" font-size="12" fill="#333">%d</text>`,
				x+barWidth/2, y-5, count)
		}
		fmt.Fprintf(&svg, `<text x="%.1f" y="%d" text-anchor="middle" font-size="11" fill="#666">%s</text>`,
			x+barWidth/2, plotBottom+18, escapeXML(labels[i]))
	}

	svg.WriteString("</svg>")
	return svg.String()
}

// PieChart renders a labelled pie with a legend for arbitrary counts.
func PieChart(title string, counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	total := 0
	for key, count := range counts {
		if count > 0 {
			keys = append(keys, key)
			total += count
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	var svg strings.Builder
	svgHeader(&svg, title)
	if total == 0 {
		fmt.Fprintf(&svg, `<text x="%d" y="%d" text-anchor="middle" font-size="14" fill="#666">No data</text>`,
			chartWidth/2, chartHeight/2)
		svg.WriteString("</svg>")
		return svg.String()
	}

	const centerX, centerY, radius = 280.0, 210.0, 130.0
	angle := -90.0
	for i, key := range keys {
		share := float64(counts[key]) / float64(total)
		next := angle + share*360
		color := chartPalette[i%len(chartPalette)]
		if share >= 0.9999 {
			fmt.Fprintf(&svg, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`,
				centerX, centerY, radius, color)
		} else {
			x1, y1 := arcPoint(centerX, centerY, radius, angle)
			x2, y2 := arcPoint(centerX, centerY, radius, next)
			largeArc := 0
			if share > 0.5 {
				largeArc = 1
			}
			fmt.Fprintf(&svg, `<path d="M%.1f,%.1f L%.1f,%.1f A%.1f,%.1f 0 %d 1 %.1f,%.1f Z" fill="%s"/>`,
				centerX, centerY, x1, y1, radius, radius, largeArc, x2, y2, color)
		}
		angle = next
	}

	legendY := 120
	for i, key := range keys {
		color := chartPalette[i%len(chartPalette)]
		fmt.Fprintf(&svg, `<rect x="470" y="%d" width="14" height="14" fill="%s"/>`, legendY, color)
		fmt.Fprintf(&svg, `<text x="492" y="%d" font-size="13" fill="#333">%s (%d)</text>`,
			legendY+12, escapeXML(key), counts[key])
		legendY += 22
	}

	svg.WriteString("</svg>")
	return svg.String()
}

func svgHeader(svg *strings.Builder, title string) {
	fmt.Fprintf(svg, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		chartWidth, chartHeight, chartWidth, chartHeight)
	fmt.Fprintf(svg, `<rect width="%d" height="%d" fill="white"/>`, chartWidth, chartHeight)
	fmt.Fprintf(svg, `<text x="%d" y="32" text-anchor="middle" font-size="18" font-weight="bold" fill="#222">%s</text>`,
		chartWidth/2, escapeXML(title))
}

func arcPoint(cx, cy, r, degrees float64) (float64, float64) {
	radians := degrees * math.Pi / 180
	return cx + r*math.Cos(radians), cy + r*math.Sin(radians)
}

func startOfWeek(t time.Time) time.Time {
	day := t.UTC()
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func escapeXML(value string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return replacer.Replace(value)
}
