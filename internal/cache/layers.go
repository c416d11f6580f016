// 包 cache 负责在内容变更后清理宿主环境中的页面缓存。
// 缓存层按固定优先级探测，第一个命中的层即为当前生效层。
package cache

import (
	"context"
)

// LayerID 为缓存层标识。
type LayerID string

const (
	LayerNone                LayerID = ""
	LayerWPSuperCache        LayerID = "wp_super_cache"
	LayerW3TotalCache        LayerID = "w3_total_cache"
	LayerWPRocket            LayerID = "wp_rocket"
	LayerLiteSpeed           LayerID = "litespeed_cache"
	LayerWPFastestCache      LayerID = "wp_fastest_cache"
	LayerCacheEnabler        LayerID = "cache_enabler"
	LayerHyperCache          LayerID = "hyper_cache"
	LayerBreeze              LayerID = "breeze"
	LayerSwiftPerformance    LayerID = "swift_performance"
	LayerSiteGroundOptimizer LayerID = "siteground_optimizer"
	LayerHummingbird         LayerID = "hummingbird"
	LayerWPOptimize          LayerID = "wp_optimize"
	LayerRedis               LayerID = "redis_cache"
	LayerMemcached           LayerID = "memcached_cache"
	LayerNitroPack           LayerID = "nitropack"
	LayerAdvancedCache       LayerID = "advanced_cache"
)

// AdvancedCacheFile 为 advanced_cache 层的探测文件（相对站点根目录）。
const AdvancedCacheFile = "wp-content/advanced-cache.php"

// Host 为宿主环境：符号是否存在、是否可调用、文件是否存在，以及调用清理函数。
type Host interface {
	Defined(symbol string) bool
	Callable(symbol string) bool
	FileExists(rel string) bool
	Call(ctx context.Context, symbol string, contentID int64) error
}

// Layer 为一个缓存层：Probe 判断是否生效，Purge 返回是否调用了清理原语。
type Layer struct {
	ID    LayerID
	Probe func(h Host) bool
	Purge func(ctx context.Context, h Host, contentID int64) (bool, error)
}

// Layers 为探测顺序，即优先级；顺序不可调整。
var Layers = []Layer{
	{LayerWPSuperCache, defined("wp_cache_post_change"), callFirst("wp_cache_post_change")},
	{LayerW3TotalCache, defined("w3tc_flush_post"), callFirst("w3tc_flush_post")},
	{LayerWPRocket, defined("rocket_clean_post"), callFirst("rocket_clean_post")},
	{LayerLiteSpeed, defined(`LiteSpeed\Purge`, "LSCWP_V"), callFirst(`LiteSpeed\Purge::purge_post`, "litespeed_purge_post")},
	{LayerWPFastestCache, defined("WpFastestCache"), callFirst("wpfc_clear_post_cache_by_id")},
	{LayerCacheEnabler, defined("Cache_Enabler"), callFirst("Cache_Enabler::clear_page_cache_by_post")},
	{LayerHyperCache, defined("HyperCache"), callFirst("HyperCache::clean_post")},
	{LayerBreeze, defined("Breeze_PurgeCache"), callFirst("Breeze_PurgeCache::breeze_cache_flush")},
	{LayerSwiftPerformance, defined("Swift_Performance_Cache"), callFirst("Swift_Performance_Cache::clear_post_cache")},
	{LayerSiteGroundOptimizer, defined("sg_cachepress_purge_cache"), callFirst("sg_cachepress_purge_cache")},
	{LayerHummingbird, defined(`Hummingbird\WP_Hummingbird`), callFirst("wphb_clear_page_cache")},
	{LayerWPOptimize, defined("WPO_Page_Cache"), callFirst("WPO_Page_Cache::delete_single_post_cache")},
	{LayerRedis, defined("WP_REDIS_VERSION", "Redis_Object_Cache"), callFirst("clean_post_cache")},
	{LayerMemcached, defined("WP_Object_Cache_Memcached", "MEMCACHED_SERVERS"), callFirst("clean_post_cache")},
	{LayerNitroPack, defined("nitropack_invalidate"), callFirst("nitropack_invalidate")},
	{LayerAdvancedCache, func(h Host) bool { return h.FileExists(AdvancedCacheFile) }, callFirst("clean_post_cache")},
}

// defined 任一符号存在即命中。
func defined(symbols ...string) func(Host) bool {
	return func(h Host) bool {
		for _, s := range symbols {
			if h.Defined(s) {
				return true
			}
		}
		return false
	}
}

// callFirst 调用第一个可调用的符号；都不可调用时返回 false。
func callFirst(symbols ...string) func(context.Context, Host, int64) (bool, error) {
	return func(ctx context.Context, h Host, contentID int64) (bool, error) {
		for _, s := range symbols {
			if !h.Callable(s) {
				continue
			}
			return true, h.Call(ctx, s, contentID)
		}
		return false, nil
	}
}

// Detect 返回第一个命中的缓存层，没有则为 LayerNone。
func Detect(h Host) LayerID {
	for _, l := range Layers {
		if l.Probe(h) {
			return l.ID
		}
	}
	return LayerNone
}

func lookup(id LayerID) (Layer, bool) {
	for _, l := range Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}
