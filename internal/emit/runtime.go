package emit

// runtimeSource installs the module registry and loader on the global
// object. Chunks register into __assetpipe__.modules; entry chunks start their
// entry module once the chunks they require are present.
const runtimeSource = `(function (global) {
  var ap = global.__assetpipe__ = global.__assetpipe__ || {};
  ap.modules = ap.modules || {};
  ap.loaded = ap.loaded || {};
  ap.manifest = ap.manifest || {};
  ap.targets = ap.targets || {};
  if (ap.require) return;
  var installed = {};
  var pending = {};
  ap.require = function (id) {
    if (installed[id]) return installed[id].exports;
    var def = ap.modules[id];
    if (!def) throw new Error("assetpipe: module " + id + " is not loaded");
    var module = installed[id] = { id: id, exports: {} };
    var local = function (spec) { return ap.require(def[1][spec] || spec); };
    local.async = function (spec) { return ap.load(def[1][spec] || spec); };
    def[0].call(module.exports, module, module.exports, local);
    return module.exports;
  };
  ap.loadChunk = function (id) {
    if (ap.loaded[id]) return Promise.resolve();
    if (pending[id]) return pending[id];
    var entry = ap.manifest[id];
    if (!entry) return Promise.reject(new Error("assetpipe: unknown chunk " + id));
    var deps = Promise.all((entry.requires || []).map(ap.loadChunk));
    pending[id] = deps.then(function () {
      if (entry.style) {
        var link = document.createElement("link");
        link.rel = "stylesheet";
        link.href = entry.style;
        document.head.appendChild(link);
      }
      return new Promise(function (resolve, reject) {
        var script = document.createElement("script");
        script.src = entry.url;
        script.async = true;
        script.onload = function () { ap.loaded[id] = true; resolve(); };
        script.onerror = function () {
          delete pending[id];
          reject(new Error("assetpipe: failed to load chunk " + id));
        };
        document.head.appendChild(script);
      });
    });
    return pending[id];
  };
  ap.load = function (id) {
    var chunk = ap.targets[id];
    var ready = chunk === undefined ? Promise.resolve() : ap.loadChunk(chunk);
    return ready.then(function () { return ap.require(id); });
  };
  ap.start = function (requires, id) {
    var missing = requires.filter(function (c) { return !ap.loaded[c]; });
    if (missing.length === 0) return ap.require(id);
    return Promise.all(missing.map(ap.loadChunk)).then(function () { return ap.require(id); });
  };
})(typeof self !== "undefined" ? self : this);
`
