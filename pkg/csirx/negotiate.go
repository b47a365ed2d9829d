package csirx

import "github.com/embedcam/csirx/pkg/sensor"

// tryFormat negotiates pix against the sensor without committing state.
// It never fails on an unrecognized pixel format: the request falls back
// to the first catalog entry and the sensor has the final word on the wire
// code. On success pix holds the negotiated geometry and the returned
// catalog entry is the one the receiver will be programmed with.
//
// Callers hold d.mu.
func (d *Device) tryFormat(pix *PixFormat) (*Format, error) {
	f := formatByPixFmt(d.snsr, pix.PixFmt)
	if f == nil {
		// Pixel format not supported. Use the first catalog entry and
		// let the sensor pick something else if it must.
		d.log.Warn().
			Str("pixfmt", FourCCString(pix.PixFmt)).
			Msg("[csirx] unknown pixel format, using first")
		f = &formats[0]
		pix.PixFmt = f.PixFmt
	}

	// Interlaced delivery is never requested.
	want := sensor.Format{Width: pix.Width, Height: pix.Height, Code: f.Code}

	got, err := d.snsr.SetFormat(want, true)
	if err != nil {
		return nil, err
	}
	if got.Interlaced {
		d.log.Warn().Msg("[csirx] sensor wants to send interlaced video - results may be unpredictable")
	}

	pix.Width, pix.Height = got.Width, got.Height

	if got.Code != f.Code {
		// Sensor answered with an alternate wire code
		if alt := FormatByCode(got.Code); alt != nil {
			f = alt
		} else {
			// The alternate is one the receiver can't take. Find the
			// first format both sides support and try once more.
			if f = firstSupportedFormat(d.snsr); f == nil {
				return nil, ErrBadFormat
			}
			want.Code = f.Code

			if got, err = d.snsr.SetFormat(want, true); err != nil {
				return nil, err
			}
			if got.Interlaced {
				d.log.Warn().Msg("[csirx] sensor wants to send interlaced video - results may be unpredictable")
			}
			pix.Width, pix.Height = got.Width, got.Height

			if got.Code != f.Code {
				// The sensor refuses a code it advertised. Nothing left
				// to do but assume it will take the code when it is set
				// rather than tried.
				d.log.Error().Msg("[csirx] sensor won't accept a mutually supported format")
			}
		}

		pix.PixFmt = f.deliveredPixFmt()
	}

	calcFormatSize(f, pix)
	return f, nil
}

// TryFormat negotiates pix without changing any state.
func (d *Device) TryFormat(pix *PixFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.tryFormat(pix)
	return err
}

// SetFormat negotiates and commits pix. Fails with ErrBusy while the
// pipeline holds buffers; stop streaming first.
func (d *Device) SetFormat(pix *PixFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pipelineIdle() {
		return ErrBusy
	}

	f, err := d.tryFormat(pix)
	if err != nil {
		return err
	}

	want := sensor.Format{Width: pix.Width, Height: pix.Height, Code: f.Code}
	got, err := d.snsr.SetFormat(want, false)
	if err != nil {
		return err
	}
	if got.Code != f.Code {
		// tryFormat resolved this; a change now means the sensor lied
		d.log.Debug().
			Uint16("want", f.Code).
			Uint16("got", got.Code).
			Msg("[csirx] sensor changed wire code on set")
		return ErrBadFormat
	}

	d.fmt = f
	d.pix = *pix
	d.wire = got

	// Re-read the sensor as the source of truth for geometry
	if err = d.resetFormat(); err != nil {
		return err
	}

	*pix = d.pix

	d.log.Debug().
		Uint32("width", d.pix.Width).
		Uint32("height", d.pix.Height).
		Uint16("code", f.Code).
		Str("pixfmt", FourCCString(d.pix.PixFmt)).
		Msg("[csirx] format set")

	return nil
}

// resetFormat refreshes the stored geometry from the sensor's active
// format. Callers hold d.mu.
func (d *Device) resetFormat() error {
	wire, err := d.snsr.GetFormat()
	if err != nil {
		d.log.Error().Err(err).Msg("[csirx] sensor get format")
		return err
	}
	if wire.Code != d.fmt.Code {
		d.log.Error().
			Uint16("want", d.fmt.Code).
			Uint16("got", wire.Code).
			Msg("[csirx] wire code mismatch")
		return ErrBadFormat
	}

	d.pix.Width = wire.Width
	d.pix.Height = wire.Height
	calcFormatSize(d.fmt, &d.pix)
	d.wire = wire
	return nil
}

// Formats enumerates the pixel formats supported by both the sensor and
// the receiver, in catalog delivery order: direct format first, repacked
// variant second.
func (d *Device) Formats() []uint32 {
	var out []uint32

	for i := 0; i < maxEnumCodes; i++ {
		code, err := d.snsr.EnumWireCode(i)
		if err != nil {
			break
		}
		f := FormatByCode(code)
		if f == nil {
			continue
		}
		if f.PixFmt != 0 {
			out = append(out, f.PixFmt)
		}
		if f.RepackedPixFmt != 0 {
			out = append(out, f.RepackedPixFmt)
		}
	}

	return out
}
