// 包 media 负责把远端图片导入本地媒体库，并设置内容的特色图片。
// 查找顺序：来源指纹 → 文件名 → 下载；导入失败返回 nil，不影响调用方流程。
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"go-myclub-groups/internal/fetch"
	"go-myclub-groups/internal/logx"
	"go-myclub-groups/internal/metrics"
	"go-myclub-groups/internal/model"
	"go-myclub-groups/internal/sanitize"
	"go-myclub-groups/internal/store"
)

// MetaSource 为来源指纹的元数据键，值为 prefix + 原始 URL。
const MetaSource = "_myclub_source"

// MediumSize 为中等尺寸变体的最长边。
const MediumSize = 300

// Image 为导入结果：附件 ID 与展示地址（优先中等尺寸）。
type Image struct {
	ID  int64
	URL string
}

type Options struct {
	UploadsDir  string
	UploadsURL  string
	TagTaxonomy bool
}

type Importer struct {
	st      *store.SQLite
	http    *fetch.Client
	dir     string
	baseURL string
	tags    bool
	now     func() time.Time
}

func NewImporter(st *store.SQLite, cl *fetch.Client, opts Options) *Importer {
	return &Importer{
		st:      st,
		http:    cl,
		dir:     opts.UploadsDir,
		baseURL: strings.TrimSuffix(opts.UploadsURL, "/"),
		tags:    opts.TagTaxonomy,
		now:     time.Now,
	}
}

// ImportImage 确保 rawURL 在媒体库中有且仅有一份本地副本。
// 下载或导入失败时清理临时文件并返回 nil, nil；error 仅来自存储层。
func (im *Importer) ImportImage(ctx context.Context, rawURL, prefix, caption, typeTag string) (*Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, nil
	}
	fingerprint := prefix + rawURL

	att, err := im.st.AttachmentByMeta(ctx, MetaSource, fingerprint)
	if err != nil {
		return nil, err
	}
	source := "fingerprint"
	if att == nil {
		name := sanitize.FileName(rawURL)
		if name != "" {
			if att, err = im.st.AttachmentByFileName(ctx, name); err != nil {
				return nil, err
			}
		}
		if att != nil {
			// 其他途径导入的同名文件：补写指纹
			source = "filename"
			if err := im.st.SetAttachmentMeta(ctx, att.ID, MetaSource, fingerprint); err != nil {
				return nil, err
			}
		} else {
			source = "download"
			att = im.download(ctx, rawURL, name, fingerprint)
			if att == nil {
				metrics.RecordImport("failed")
				return nil, nil
			}
		}
	}
	metrics.RecordImport(source)

	if caption != "" && caption != att.Caption {
		if err := im.st.UpdateAttachmentCaption(ctx, att.ID, caption); err != nil {
			return nil, err
		}
	}
	if im.tags && typeTag != "" {
		if err := im.st.AddAttachmentTag(ctx, att.ID, typeTag); err != nil {
			return nil, err
		}
	}
	return &Image{ID: att.ID, URL: im.displayURL(att)}, nil
}

// SetFeaturedImage 导入图片并设为 postID 的特色图片；原特色图片（不同附件时）整体删除。
// imageURL 为空时不做任何事。
func (im *Importer) SetFeaturedImage(ctx context.Context, postID int64, imageURL, prefix, caption, typeTag string) error {
	if strings.TrimSpace(imageURL) == "" {
		return nil
	}
	img, err := im.ImportImage(ctx, imageURL, prefix, caption, typeTag)
	if err != nil {
		return err
	}
	if img == nil {
		return nil
	}
	p, err := im.st.Post(ctx, postID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("post %d not found", postID)
	}
	if p.FeaturedImageID == img.ID {
		return nil
	}
	if p.FeaturedImageID != 0 {
		if err := im.DeleteAttachment(ctx, p.FeaturedImageID); err != nil {
			return err
		}
	}
	return im.st.SetFeaturedImage(ctx, postID, img.ID)
}

// DeleteAttachment 删除附件记录与磁盘文件。
func (im *Importer) DeleteAttachment(ctx context.Context, id int64) error {
	att, err := im.st.Attachment(ctx, id)
	if err != nil {
		return err
	}
	if att == nil {
		return nil
	}
	for _, rel := range []string{att.Path, att.MediumPath} {
		if rel == "" {
			continue
		}
		if err := os.Remove(im.abs(rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Warnf("删除媒体文件失败：%s 错误=%v", rel, err)
		}
	}
	return im.st.DeleteAttachment(ctx, id)
}

func (im *Importer) download(ctx context.Context, rawURL, name, fingerprint string) *model.Attachment {
	tmp, err := os.CreateTemp("", "myclub-media-*")
	if err != nil {
		logx.Errorf("创建临时文件失败：%v", err)
		return nil
	}
	defer os.Remove(tmp.Name())
	_, ctype, err := im.http.Download(ctx, rawURL, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		logx.Warnf("下载图片失败：%s 错误=%v", rawURL, err)
		return nil
	}
	att, err := im.importFile(ctx, tmp.Name(), name, ctype)
	if err != nil {
		logx.Warnf("导入图片失败：%s 错误=%v", rawURL, err)
		return nil
	}
	if err := im.st.SetAttachmentMeta(ctx, att.ID, MetaSource, fingerprint); err != nil {
		logx.Warnf("写入来源指纹失败：%s 错误=%v", rawURL, err)
	}
	logx.Infof("已导入图片：%s -> %s", rawURL, att.Path)
	return att
}

// importFile 把临时文件放入 uploads/YYYY/MM/，生成中等尺寸变体并写入附件记录。
// 任一步失败都会删除已写出的文件。
func (im *Importer) importFile(ctx context.Context, src, name, ctype string) (att *model.Attachment, err error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	img, format, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if name == "" {
		name = "image." + format
	}
	if !strings.HasPrefix(ctype, "image/") {
		ctype = "image/" + format
	}

	sub := im.now().Format("2006/01")
	dir := filepath.Join(im.dir, filepath.FromSlash(sub))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	stored := uniqueName(dir, name)
	var written []string
	defer func() {
		if err != nil {
			for _, p := range written {
				_ = os.Remove(p)
			}
		}
	}()

	full := filepath.Join(dir, stored)
	written = append(written, full)
	if err := copyFile(src, full); err != nil {
		return nil, err
	}

	a := model.Attachment{
		FileName:  name,
		Path:      path.Join(sub, stored),
		MimeType:  ctype,
		CreatedAt: im.now(),
	}
	if medium, ok := scaleToFit(img, MediumSize); ok {
		b := medium.Bounds()
		ext := path.Ext(stored)
		if format != "jpeg" && format != "png" {
			ext = ".png"
		}
		mname := fmt.Sprintf("%s-%dx%d%s", strings.TrimSuffix(stored, path.Ext(stored)), b.Dx(), b.Dy(), ext)
		mfull := filepath.Join(dir, mname)
		written = append(written, mfull)
		if err := writeImage(mfull, medium, format); err != nil {
			return nil, err
		}
		a.MediumPath = path.Join(sub, mname)
	}

	id, err := im.st.InsertAttachment(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	return &a, nil
}

func (im *Importer) abs(rel string) string {
	return filepath.Join(im.dir, filepath.FromSlash(rel))
}

func (im *Importer) displayURL(a *model.Attachment) string {
	rel := a.Path
	if a.MediumPath != "" {
		rel = a.MediumPath
	}
	return im.baseURL + "/" + rel
}

// uniqueName 在文件已存在时追加短 uuid。
func uniqueName(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
		return name
	}
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "-" + uuid.NewString()[:8] + ext
}

// scaleToFit 等比缩放到最长边不超过 limit；原图已足够小时返回 false。
func scaleToFit(src image.Image, limit int) (image.Image, bool) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return nil, false
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst, true
}

func writeImage(p string, img image.Image, format string) error {
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if format == "jpeg" {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 82})
	} else {
		err = png.Encode(f, img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
