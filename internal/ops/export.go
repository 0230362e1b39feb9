package ops

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"

	racedb "github.com/midoshouse/midos.house/app/modules/race/infrastructure/repositories"
	"github.com/midoshouse/midos.house/app/shared/observability/attr"
	sharedtypes "github.com/midoshouse/midos.house/app/shared/types/shared"
)

// teamNames maps the event's team IDs to display names.
func (s *Server) teamNames(r *http.Request, eventID sharedtypes.EventID) (map[sharedtypes.TeamID]string, error) {
	teams, err := s.teamRepo.ListByEvent(r.Context(), eventID)
	if err != nil {
		return nil, err
	}
	names := make(map[sharedtypes.TeamID]string, len(teams))
	for _, team := range teams {
		names[team.ID] = team.Name
	}
	return names, nil
}

func teamLabel(names map[sharedtypes.TeamID]string, id sharedtypes.TeamID) string {
	if name, ok := names[id]; ok {
		return name
	}
	return string(id)
}

// handleResultsExport streams the event's recorded races as a spreadsheet,
// one row per entrant.
func (s *Server) handleResultsExport(w http.ResponseWriter, r *http.Request) {
	eventID := sharedtypes.EventID(chi.URLParam(r, "event"))

	races, err := s.raceRepo.ListRecordedByEvent(r.Context(), eventID)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	names, err := s.teamNames(r, eventID)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Results"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Race", "Phase", "Round", "Game", "Team", "Finish", "Place", "Forfeit", "DQ", "Winner"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}

	row := 2
	for _, race := range races {
		for _, entrant := range race.Entrants {
			finish := ""
			if entrant.FinishTime != nil {
				finish = entrant.FinishTime.String()
			}
			winner := race.WinnerTeamID != nil && *race.WinnerTeamID == entrant.TeamID
			values := []any{
				string(race.ID),
				race.Phase,
				race.Round,
				race.Game,
				teamLabel(names, entrant.TeamID),
				finish,
				entrant.Place,
				entrant.Forfeited,
				entrant.DQ,
				winner,
			}
			for col, value := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(sheet, cell, value)
			}
			row++
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(eventID)+"-results.xlsx"))
	if err := f.Write(w); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to stream results export", attr.Error(err))
	}
}

// handleDurationsChart renders the distribution of recorded finish times as a
// bar chart over 10-minute buckets.
func (s *Server) handleDurationsChart(w http.ResponseWriter, r *http.Request) {
	eventID := sharedtypes.EventID(chi.URLParam(r, "event"))

	races, err := s.raceRepo.ListRecordedByEvent(r.Context(), eventID)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	buckets := finishBuckets(races)
	if len(buckets) == 0 {
		http.Error(w, "no recorded finishes", http.StatusNotFound)
		return
	}

	maxCount := 0.0
	for _, bucket := range buckets {
		if bucket.Value > maxCount {
			maxCount = bucket.Value
		}
	}
	graph := chart.BarChart{
		Title:    fmt.Sprintf("%s finish times", eventID),
		Height:   400,
		BarWidth: 40,
		Bars:     buckets,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxCount + 1},
		},
	}

	w.Header().Set("Content-Type", "image/png")
	if err := graph.Render(chart.PNG, w); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to render durations chart", attr.Error(err))
	}
}

const bucketWidth = 10 * time.Minute

// finishBuckets counts non-forfeit finishes per 10-minute bucket.
func finishBuckets(races []*racedb.Race) []chart.Value {
	counts := map[time.Duration]int{}
	for _, race := range races {
		for _, entrant := range race.Entrants {
			if entrant.FinishTime == nil || entrant.Forfeited || entrant.DQ {
				continue
			}
			bucket := entrant.FinishTime.Duration().Truncate(bucketWidth)
			counts[bucket]++
		}
	}

	keys := make([]time.Duration, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	values := make([]chart.Value, len(keys))
	for i, k := range keys {
		values[i] = chart.Value{
			Label: fmt.Sprintf("%d:%02d", int(k.Hours()), int(k.Minutes())%60),
			Value: float64(counts[k]),
		}
	}
	return values
}
