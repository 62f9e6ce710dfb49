package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldviz/fields"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfig(t *testing.T) {
	Convey("When using the defaults", t, func() {
		cfg := Default()
		So(cfg.Validate(), ShouldBeNil)
		So(cfg.Addr(), ShouldEqual, ":8080")
		So(cfg.FieldType(), ShouldEqual, fields.Scalar)

		Convey("A zero seed is taken from the clock", func() {
			now := time.Unix(0, 1234)
			So(cfg.Seed(now), ShouldEqual, uint64(1234))
			cfg.Generator.Seed = 9
			So(cfg.Seed(now), ShouldEqual, uint64(9))
		})
	})

	Convey("When loading a config file", t, func() {
		Convey("Values in def override the defaults and the rest are kept", func() {
			path := writeConfig(t, `
kind: fieldviz
def:
  server:
    port: 9090
    publish_rate: 250ms
  generator:
    seed: 77
    field_type: vector
`)
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.Server.Port, ShouldEqual, 9090)
			So(cfg.Server.PublishRate, ShouldEqual, 250*time.Millisecond)
			So(cfg.Server.ShutdownTimeout, ShouldEqual, Default().Server.ShutdownTimeout)
			So(cfg.Generator.Seed, ShouldEqual, uint64(77))
			So(cfg.FieldType(), ShouldEqual, fields.Vector)
			So(cfg.Log, ShouldResemble, Default().Log)
		})

		Convey("The sample config at the repo root loads", func() {
			cfg, err := FromYaml(filepath.Join("..", "config.yaml"))
			So(err, ShouldBeNil)
			So(cfg, ShouldResemble, Default())
		})

		Convey("A foreign kind is rejected", func() {
			path := writeConfig(t, "kind: trainingConfig\ndef: {}\n")
			_, err := FromYaml(path)
			So(errors.Is(err, ErrWrongKind), ShouldBeTrue)
		})

		Convey("Invalid values are all reported", func() {
			path := writeConfig(t, `
kind: fieldviz
def:
  server:
    port: 70000
  generator:
    field_type: pressure
  log:
    format: xml
`)
			_, err := FromYaml(path)
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "server.port")
			So(err.Error(), ShouldContainSubstring, "generator.field_type")
			So(err.Error(), ShouldContainSubstring, "log.format")
		})

		Convey("A missing file is recognizable", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "absent.yaml"))
			So(errors.Is(err, fs.ErrNotExist), ShouldBeTrue)
		})
	})
}
