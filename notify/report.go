package notify

import (
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/scan"
	"github.com/soter-security/soter/utils"
)

const latestReport = "latest.json"

type reportOption func(*Report)

func WithReportFs(fs afero.Fs) reportOption {
	return func(r *Report) { r.fs = utils.NewFs(fs) }
}

// Report writes every result, clean or not, as JSON into a directory: one file
// per cycle named after its start time, plus latest.json.
type Report struct {
	dir  string
	site string
	fs   utils.Fs
}

type report struct {
	Site      string    `json:"site"`
	Subject   string    `json:"subject"`
	Summaries []Summary `json:"summaries,omitempty"`
	scan.Result
}

func NewReport(dir, site string, opts ...reportOption) Report {
	r := Report{
		dir:  dir,
		site: site,
		fs:   utils.NewFs(afero.NewOsFs()),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (n Report) Notify(result scan.Result) error {
	rep := report{
		Site:    n.site,
		Subject: Subject(n.site, len(result.Findings)),
		Result:  result,
	}
	for _, v := range result.Vulnerabilities() {
		rep.Summaries = append(rep.Summaries, Summarize(v))
	}

	name := result.StartedAt.UTC().Format("20060102T150405Z") + ".json"
	for _, path := range []string{filepath.Join(n.dir, name), filepath.Join(n.dir, latestReport)} {
		if err := n.fs.WriteJSON(path, rep); err != nil {
			return xerrors.Errorf("failed to write the report %s: %w", path, err)
		}
	}
	return nil
}

// Latest reads back the last written result.
func (n Report) Latest() (scan.Result, error) {
	var rep report
	path := filepath.Join(n.dir, latestReport)
	if err := n.fs.ReadJSON(path, &rep); err != nil {
		return scan.Result{}, xerrors.Errorf("failed to read the report %s: %w", path, err)
	}
	return rep.Result, nil
}
