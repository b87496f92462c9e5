package runner

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/ikex/pkg/ike"
	"github.com/projectdiscovery/ikex/pkg/result"
)

// Result contains the probe outcome for a single host and port as it
// is written to the json and csv outputs.
type Result struct {
	TimeStamp time.Time     `json:"timestamp" csv:"timestamp"`
	Host      string        `json:"host,omitempty" csv:"host"`
	IP        string        `json:"ip" csv:"ip"`
	Port      int           `json:"port" csv:"port"`
	Probe     string        `json:"probe" csv:"probe"`
	Status    string        `json:"status" csv:"status"`
	V1        *ike.V1Result `json:"ikev1,omitempty" csv:"-"`
	V2        *ike.V2Result `json:"ikev2,omitempty" csv:"-"`
	Banner    []byte        `json:"banner,omitempty" csv:"-"`
}

// JSON returns the result row as a json string
func (r *Result) JSON() ([]byte, error) {
	return jsoniter.Marshal(r)
}

// CSVHeaders returns the csv headers of a result row
func (r *Result) CSVHeaders() ([]string, error) {
	ty := reflect.TypeOf(*r)
	var headers []string
	for i := 0; i < ty.NumField(); i++ {
		tag := ty.Field(i).Tag.Get("csv")
		if tag == "" || tag == "-" {
			continue
		}
		headers = append(headers, tag)
	}
	return headers, nil
}

// CSVFields returns the csv fields of a result row
func (r *Result) CSVFields() ([]string, error) {
	ty := reflect.TypeOf(*r)
	vl := reflect.ValueOf(*r)

	var fields []string
	for i := 0; i < ty.NumField(); i++ {
		tag := ty.Field(i).Tag.Get("csv")
		if tag == "" || tag == "-" {
			continue
		}
		fields = append(fields, fmt.Sprint(vl.Field(i).Interface()))
	}
	return fields, nil
}

func newResultRow(host, ip string, rep *result.Report) *Result {
	data := &Result{
		TimeStamp: time.Now().UTC(),
		IP:        ip,
		Port:      rep.Port,
		Probe:     rep.Probe,
		Status:    reportStatus(rep),
		V1:        rep.V1,
		V2:        rep.V2,
		Banner:    rep.Banner,
	}
	if host != ip {
		data.Host = host
	}
	return data
}

// reportStatus condenses a probe report into the short status string
// shown next to host:port on the console and in csv rows.
func reportStatus(rep *result.Report) string {
	switch {
	case rep.V2 != nil:
		if rep.V2.Error != nil {
			if rep.V2.ErrorNotify != "" {
				return fmt.Sprintf("rejected (%s)", rep.V2.ErrorNotify)
			}
			return "rejected"
		}
		if rep.V2.VersionWarning != "" {
			return fmt.Sprintf("%s (unexpected version)", rep.V2.Version)
		}
		return rep.V2.Version
	case rep.V1 != nil:
		if rep.V1.Error != nil {
			if rep.V1.Notify != "" {
				return fmt.Sprintf("rejected (%s)", rep.V1.Notify)
			}
			return "rejected"
		}
		return fmt.Sprintf("%s %s", rep.V1.Version, rep.V1.ExchangeType)
	case rep.Banner != nil:
		return fmt.Sprintf("%d bytes", len(rep.Banner))
	}
	return "responsive"
}

func writeCSVHeaders(data *Result, writer *csv.Writer) {
	headers, err := data.CSVHeaders()
	if err != nil {
		gologger.Error().Msg(err.Error())
		return
	}

	if err := writer.Write(headers); err != nil {
		errMsg := errors.Wrap(err, "Could not write headers")
		gologger.Error().Msg(errMsg.Error())
	}
}

func writeCSVRow(data *Result, writer *csv.Writer) {
	rowData, err := data.CSVFields()
	if err != nil {
		gologger.Error().Msg(err.Error())
		return
	}
	if err := writer.Write(rowData); err != nil {
		errMsg := errors.Wrap(err, "Could not write row")
		gologger.Error().Msg(errMsg.Error())
	}
}

// WriteHostOutput writes the list of probed services for a host to an io.Writer
func WriteHostOutput(host string, reports []*result.Report, writer io.Writer) error {
	bufwriter := bufio.NewWriter(writer)
	sb := &strings.Builder{}

	for _, rep := range reports {
		sb.WriteString(host)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(rep.Port))
		sb.WriteString(" [")
		sb.WriteString(rep.Probe)
		sb.WriteString(" ")
		sb.WriteString(reportStatus(rep))
		sb.WriteString("]\n")

		_, err := bufwriter.WriteString(sb.String())
		if err != nil {
			bufwriter.Flush()
			return err
		}
		sb.Reset()
	}
	return bufwriter.Flush()
}

// WriteJSONOutput writes the probe reports for a host in JSON lines to an io.Writer
func WriteJSONOutput(host, ip string, reports []*result.Report, writer io.Writer) error {
	encoder := jsoniter.NewEncoder(writer)

	for _, rep := range reports {
		data := newResultRow(host, ip, rep)
		if err := encoder.Encode(data); err != nil {
			return err
		}
	}
	return nil
}

// WriteCsvOutput writes the probe reports for a host in csv format to an io.Writer
func WriteCsvOutput(host, ip string, reports []*result.Report, header bool, writer io.Writer) error {
	encoder := csv.NewWriter(writer)
	if header {
		writeCSVHeaders(&Result{}, encoder)
	}

	for _, rep := range reports {
		writeCSVRow(newResultRow(host, ip, rep), encoder)
	}
	encoder.Flush()
	return nil
}
