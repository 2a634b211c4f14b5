package domain

import "testing"

func TestServerDescriptorValidate(t *testing.T) {
	base := ServerDescriptor{
		ID:          "OpenStreetMap",
		DisplayName: "OpenStreetMap",
		URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Scheme:      SchemeXYZ,
		MaxZoom:     19,
		Format:      FormatPNG,
	}

	tests := []struct {
		name    string
		mutate  func(*ServerDescriptor)
		wantErr bool
	}{
		{"valid xyz", func(*ServerDescriptor) {}, false},
		{"missing id", func(s *ServerDescriptor) { s.ID = "" }, true},
		{"missing url", func(s *ServerDescriptor) { s.URLTemplate = "" }, true},
		{"xyz without placeholders", func(s *ServerDescriptor) { s.URLTemplate = "https://example.com/tiles" }, true},
		{"quadkey valid", func(s *ServerDescriptor) {
			s.Scheme = SchemeQuadkey
			s.URLTemplate = "https://ecn.t0.tiles.virtualearth.net/tiles/a{quadkey}.jpeg"
		}, false},
		{"quadkey without placeholder", func(s *ServerDescriptor) { s.Scheme = SchemeQuadkey }, true},
		{"wms opaque url", func(s *ServerDescriptor) {
			s.Scheme = SchemeWMS
			s.URLTemplate = "https://services.example.gov/wms"
		}, false},
		{"unknown scheme", func(s *ServerDescriptor) { s.Scheme = "tms" }, true},
		{"zoom out of range", func(s *ServerDescriptor) { s.MaxZoom = 30 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := base
			tt.mutate(&srv)
			err := srv.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCustomServer(t *testing.T) {
	xyz := CustomServer("https://tiles.example.com/{z}/{x}/{y}.png", FormatPNG)
	if xyz.Scheme != SchemeXYZ || xyz.ID != "custom" {
		t.Errorf("xyz custom server: %+v", xyz)
	}
	if err := xyz.Validate(); err != nil {
		t.Errorf("xyz custom server invalid: %v", err)
	}

	qk := CustomServer("https://tiles.example.com/a{quadkey}.jpeg", FormatJPEG)
	if qk.Scheme != SchemeQuadkey {
		t.Errorf("quadkey template not detected: %+v", qk)
	}
}

func TestResolveSubdomain(t *testing.T) {
	got := ResolveSubdomain("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", "b")
	want := "https://b.tile.openstreetmap.org/{z}/{x}/{y}.png"
	if got != want {
		t.Errorf("ResolveSubdomain = %q", got)
	}

	// Templates without the shard placeholder pass through untouched.
	plain := "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	if ResolveSubdomain(plain, "a") != plain {
		t.Error("template without {s} was modified")
	}
}
