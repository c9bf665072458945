//go:build cgo

package jpegdec

/*
#cgo LDFLAGS: -ljpeg

#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <setjmp.h>
#include <jpeglib.h>

typedef struct {
	struct jpeg_error_mgr pub;
	jmp_buf setjmp_buffer;
	char msg[JMSG_LENGTH_MAX];
} jpegdec_error_mgr;

static void jpegdec_error_exit(j_common_ptr cinfo) {
	jpegdec_error_mgr *err = (jpegdec_error_mgr *)cinfo->err;
	(*cinfo->err->format_message)(cinfo, err->msg);
	longjmp(err->setjmp_buffer, 1);
}

typedef struct {
	int width;
	int height;
	int format; // 0 = I420, 1 = RGB24
	int stride;
	void *data;
	size_t size;
	char msg[JMSG_LENGTH_MAX];
} jpegdec_result;

static int align16(int v) {
	return (v + 15) & ~15;
}

// jpegdec_decode drives the whole libjpeg-turbo lifecycle for a single
// call: create, decode (or header-only parse), destroy. No state survives
// past this function, so a failure here can never corrupt a later call.
int jpegdec_decode(const unsigned char *src, size_t srclen, int header_only, jpegdec_result *out) {
	struct jpeg_decompress_struct cinfo;
	jpegdec_error_mgr jerr;

	memset(out, 0, sizeof(*out));

	cinfo.err = jpeg_std_error(&jerr.pub);
	jerr.pub.error_exit = jpegdec_error_exit;
	if (setjmp(jerr.setjmp_buffer)) {
		strncpy(out->msg, jerr.msg, sizeof(out->msg) - 1);
		jpeg_destroy_decompress(&cinfo);
		return 1;
	}

	jpeg_create_decompress(&cinfo);
	jpeg_mem_src(&cinfo, src, (unsigned long)srclen);
	jpeg_read_header(&cinfo, TRUE);

	int luma_h = cinfo.comp_info[0].h_samp_factor;
	int luma_v = cinfo.comp_info[0].v_samp_factor;
	int cb_h = cinfo.comp_info[1].h_samp_factor;
	int cb_v = cinfo.comp_info[1].v_samp_factor;
	int cr_h = cinfo.comp_info[2].h_samp_factor;
	int cr_v = cinfo.comp_info[2].v_samp_factor;
	int is420 = (luma_h == 2 && luma_v == 2 && cb_h == 1 && cb_v == 1 && cr_h == 1 && cr_v == 1);

	out->width = cinfo.image_width;
	out->height = cinfo.image_height;
	out->format = is420 ? 0 : 1;

	if (header_only) {
		jpeg_destroy_decompress(&cinfo);
		return 0;
	}

	if (is420) {
		cinfo.raw_data_out = TRUE;
		cinfo.do_fancy_upsampling = FALSE;
		jpeg_start_decompress(&cinfo);

		// libjpeg's raw-data interface only ever hands back whole MCU rows
		// (16 luma rows / 8 chroma rows at a time), so the scratch buffer
		// that jpeg_read_raw_data writes into has to be sized to the
		// 16-pixel-aligned image, not the real one. That scratch buffer is
		// never exposed to the caller: once decompression finishes, its
		// planes are repacked row-by-row into a tightly packed buffer sized
		// to the real (unaligned) width/height, matching what
		// frame.PayloadSize(I420, width, height) expects on the Go side.
		int width = cinfo.image_width, height = cinfo.image_height;
		int yw = align16(width), yh = align16(height);
		int cw = yw / 2, ch = yh / 2;
		size_t ysize = (size_t)yw * yh;
		size_t csize = (size_t)cw * ch;

		unsigned char *scratch = (unsigned char *)malloc(ysize + 2 * csize);
		if (scratch == NULL) {
			jpeg_destroy_decompress(&cinfo);
			return 2;
		}
		unsigned char *yplane = scratch;
		unsigned char *uplane = scratch + ysize;
		unsigned char *vplane = uplane + csize;

		// Padding rows (past the real image, within the last partial MCU
		// row) are written by libjpeg but never read back; they point at
		// dedicated scratch rows rather than aliasing a real row, so the
		// last genuine scanline(s) are never overwritten.
		unsigned char y_pad[yw];
		unsigned char c_pad[cw];

		JSAMPROW y_rows[16], cb_rows[8], cr_rows[8];
		JSAMPARRAY planes[3] = {y_rows, cb_rows, cr_rows};

		while (cinfo.output_scanline < cinfo.output_height) {
			int base = cinfo.output_scanline;
			for (int i = 0; i < 16; i++) {
				int row = base + i;
				y_rows[i] = (row < (int)cinfo.output_height) ? (yplane + (size_t)row * yw) : y_pad;
			}
			for (int i = 0; i < 8; i++) {
				int row = base / 2 + i;
				cb_rows[i] = (row < ch) ? (uplane + (size_t)row * cw) : c_pad;
				cr_rows[i] = (row < ch) ? (vplane + (size_t)row * cw) : c_pad;
			}
			jpeg_read_raw_data(&cinfo, planes, 16);
		}
		jpeg_finish_decompress(&cinfo);

		int chroma_w = (width + 1) / 2, chroma_h = (height + 1) / 2;
		size_t packed_csize = (size_t)chroma_w * chroma_h;
		out->stride = width;
		out->size = (size_t)width * height + 2 * packed_csize;
		out->data = malloc(out->size);
		if (out->data == NULL) {
			free(scratch);
			jpeg_destroy_decompress(&cinfo);
			return 2;
		}
		unsigned char *dst_y = (unsigned char *)out->data;
		unsigned char *dst_u = dst_y + (size_t)width * height;
		unsigned char *dst_v = dst_u + packed_csize;
		for (int row = 0; row < height; row++) {
			memcpy(dst_y + (size_t)row * width, yplane + (size_t)row * yw, width);
		}
		for (int row = 0; row < chroma_h; row++) {
			memcpy(dst_u + (size_t)row * chroma_w, uplane + (size_t)row * cw, chroma_w);
			memcpy(dst_v + (size_t)row * chroma_w, vplane + (size_t)row * cw, chroma_w);
		}
		free(scratch);
	} else {
		cinfo.out_color_space = JCS_RGB;
		jpeg_start_decompress(&cinfo);

		int stride = cinfo.output_width * cinfo.output_components;
		out->stride = stride;
		out->size = (size_t)stride * cinfo.output_height;
		out->data = malloc(out->size);
		if (out->data == NULL) {
			jpeg_destroy_decompress(&cinfo);
			return 2;
		}
		JSAMPROW rowptr[1];
		while (cinfo.output_scanline < cinfo.output_height) {
			rowptr[0] = (unsigned char *)out->data + (size_t)cinfo.output_scanline * stride;
			jpeg_read_scanlines(&cinfo, rowptr, 1);
		}
		jpeg_finish_decompress(&cinfo);
	}

	jpeg_destroy_decompress(&cinfo);
	return 0;
}

static void jpegdec_free(void *p) {
	free(p);
}
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/lanternops/streamnode/internal/frame"
)

type cgoBackend struct{}

func newBackend() backend { return cgoBackend{} }

func (cgoBackend) decode(src []byte, headerOnly bool) (result, error) {
	var out C.jpegdec_result
	var headerOnlyC C.int
	if headerOnly {
		headerOnlyC = 1
	}

	rc := C.jpegdec_decode((*C.uchar)(unsafe.Pointer(&src[0])), C.size_t(len(src)), headerOnlyC, &out)
	if rc != 0 {
		msg := C.GoString(&out.msg[0])
		if msg == "" {
			msg = "libjpeg decompression failed"
		}
		return result{}, errors.New(msg)
	}
	defer func() {
		if out.data != nil {
			C.jpegdec_free(out.data)
		}
	}()

	r := result{
		width:  int(out.width),
		height: int(out.height),
		stride: int(out.stride),
	}
	if out.format == 0 {
		r.format = frame.YUV420
	} else {
		r.format = frame.RGB24
	}
	if !headerOnly {
		r.pixels = C.GoBytes(out.data, C.int(out.size))
	}
	return r, nil
}
