// printer package displays pipeline progress and problems to the operator.
//
// Everything goes to stderr: stdout is reserved for the visualizer input
// file when no --out flag is given.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/viper"
)

var std = &logger{out: os.Stderr, color: aurora.NewAurora(true)}

type logger struct {
	out   io.Writer
	color aurora.Aurora

	// In JSON mode every message becomes one object per line, for
	// consumption by log collectors.
	json bool
}

func (p *logger) printf(status string, header aurora.Value, f string, args ...interface{}) {
	if p.json {
		json.NewEncoder(p.out).Encode(jsonEntry{
			Date:    time.Now(),
			Status:  status,
			Message: strings.Trim(fmt.Sprintf(f, args...), "\n"),
		}) // Encode includes the newline
		return
	}
	fmt.Fprint(p.out, header.String())
	fmt.Fprintf(p.out, f, args...)
}

type jsonEntry struct {
	Date    time.Time `json:"date"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// SwitchToJSON switches the printer to machine-readable output. No ANSI
// escapes.
func SwitchToJSON() {
	std.color = aurora.NewAurora(false)
	std.json = true
}

func Infof(f string, args ...interface{}) {
	std.printf("info", std.color.Blue("[INFO] "), f, args...)
}

func Warningf(f string, args ...interface{}) {
	std.printf("warning", std.color.Yellow("[WARNING] "), f, args...)
}

func Errorf(f string, args ...interface{}) {
	std.printf("error", std.color.Red("[ERROR] "), f, args...)
}

func Debugf(f string, args ...interface{}) {
	if viper.GetBool("debug") {
		std.printf("debug", std.color.Magenta("[DEBUG] "), f, args...)
	}
}

// V gates chatty per-packet and per-message output behind the
// --verbose-level flag: messages print only when the flag is set and the
// message's level is at or above it.
func V(level int) Verbose {
	l := viper.GetInt("verbose-level")
	return Verbose{enabled: l > 0 && level >= l}
}

type Verbose struct {
	enabled bool
}

func (v Verbose) Debugf(f string, args ...interface{}) {
	if v.enabled {
		std.printf("debug", std.color.Magenta("[DEBUG] "), f, args...)
	}
}
