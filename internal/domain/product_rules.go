package domain

import (
	"fmt"
	"sort"
	"strings"

	"beanstore/internal/apperr"
)

// ValidateOptions checks that option names and their values are present and unique.
func ValidateOptions(options []ProductOption) error {
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			return apperr.Validation("選項名稱不可為空")
		}
		if seen[name] {
			return apperr.Validation(fmt.Sprintf("選項名稱重複: %s", name))
		}
		seen[name] = true
		if len(o.Values) == 0 {
			return apperr.Validation(fmt.Sprintf("選項 %s 至少需要一個值", name))
		}
		vals := make(map[string]bool, len(o.Values))
		for _, v := range o.Values {
			v = strings.TrimSpace(v)
			if v == "" {
				return apperr.Validation(fmt.Sprintf("選項 %s 含有空白值", name))
			}
			if vals[v] {
				return apperr.Validation(fmt.Sprintf("選項 %s 的值重複: %s", name, v))
			}
			vals[v] = true
		}
	}
	return nil
}

// ValidateVariants enforces that every variant picks exactly one declared value
// for each declared option, and that no two variants share a combination.
func ValidateVariants(options []ProductOption, variants []ProductVariant) error {
	if err := ValidateOptions(options); err != nil {
		return err
	}
	// values are matched exactly as stored; callers trim before validating
	declared := make(map[string]map[string]bool, len(options))
	for _, o := range options {
		vals := make(map[string]bool, len(o.Values))
		for _, v := range o.Values {
			vals[v] = true
		}
		declared[o.Name] = vals
	}

	combos := make(map[string]bool, len(variants))
	for i, v := range variants {
		if v.Price.IsNegative() {
			return apperr.Validation(fmt.Sprintf("第 %d 個規格價格不可為負數", i+1))
		}
		if v.Stock < 0 {
			return apperr.Validation(fmt.Sprintf("第 %d 個規格庫存不可為負數", i+1))
		}
		if len(v.OptionValues) != len(declared) {
			return apperr.Validation(fmt.Sprintf("第 %d 個規格必須為每個選項指定一個值", i+1))
		}
		for name, val := range v.OptionValues {
			vals, ok := declared[name]
			if !ok {
				return apperr.Validation(fmt.Sprintf("第 %d 個規格使用了未定義的選項: %s", i+1, name))
			}
			if !vals[val] {
				return apperr.Validation(fmt.Sprintf("第 %d 個規格使用了未定義的值: %s=%s", i+1, name, val))
			}
		}
		key := v.OptionValues.Key()
		if combos[key] {
			return apperr.Validation(fmt.Sprintf("規格組合重複: %s", key))
		}
		combos[key] = true
	}
	return nil
}

// Key is the canonical form of a value combination: name=value pairs sorted
// by option name.
func (o OptionValues) Key() string {
	names := make([]string, 0, len(o))
	for n := range o {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + o[n]
	}
	return strings.Join(parts, ",")
}

// NormalizeImages renumbers sort order by position and keeps exactly one cover.
// The first flagged image wins; with none flagged the first image becomes cover.
func NormalizeImages(images []ProductImage) []ProductImage {
	out := make([]ProductImage, len(images))
	copy(out, images)
	cover := -1
	for i := range out {
		out[i].SortOrder = i
		if out[i].IsCover && cover < 0 {
			cover = i
		}
		out[i].IsCover = false
	}
	if len(out) > 0 {
		if cover < 0 {
			cover = 0
		}
		out[cover].IsCover = true
	}
	return out
}
