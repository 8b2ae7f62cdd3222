// Package i18n provides the localized text catalogue for the feedback bot.
//
// The catalogue is a fixed in-binary table keyed by (locale, key). Lookups
// fall back to the default locale, then to the key itself, so a missing
// translation never fails a message send.
package i18n

import (
	"log/slog"

	"github.com/rentagg/feedbot/internal/models"
)

// DefaultLocale is used when a user has no stored preference and when a key
// is missing from the requested locale.
const DefaultLocale = models.LocaleRU

var catalogue = map[models.Locale]map[string]string{
	models.LocaleRU: {
		"choose_lang": "Выберите язык / Тилни танланг",
		"hello": "Привет! Это тестовый бот для партнёров автопроката.\n" +
			"Помоги нам улучшить агрегатор — ответь на 5 быстрых вопросов (2–3 минуты).",
		"start_btn": "Начать опрос",
		"cancel":    "Отменить",
		"thanks":    "Спасибо! Ответы сохранены. 🎉\nЕсли готовы — напишите, созвонимся по деталям.",
		"err":       "Ой! Что-то пошло не так. Попробуй ещё раз /start",
		"q1": "1/5. Сколько времени ушло на регистрацию и добавление первой машины?\n\n" +
			"Варианты: <15 минут / 15–30 минут / >30 минут",
		"q1_opt1": "<15 минут",
		"q1_opt2": "15–30 минут",
		"q1_opt3": ">30 минут",
		"q2": "2/5. Насколько понятны статусы заявок и уведомления?\n\n" +
			"Оцени по шкале 1–10 (где 10 — идеально).",
		"q3":            "3/5. Что показалось неудобным? (свободный ответ)",
		"q4":            "4/5. Каких функций не хватает в первую очередь? (например: онлайн-оплата, шаблоны цен, импорт)",
		"q5":            "5/5. Готовы ли рекомендовать коллегам? Укажи оценку 1–10.",
		"ask_company":   "Укажи название компании (как у вас в Telegram/Instagram/юр. название)",
		"done":          "Готово ✅",
		"back":          "⬅️ Назад",
		"skip":          "Пропустить",
		"post_offer":    "Хотите оставить контакты для связи или комментарий?",
		"btn_contact":   "📞 Оставить контакты",
		"btn_comment":   "💬 Оставить комментарий",
		"share_contact": "Поделиться контактом",
		"ask_contact":   "Отправьте контакт кнопкой ниже или напишите имя и телефон текстом.",
		"ask_comment":   "Напишите комментарий одним сообщением.",
		"contact_saved": "Контакты сохранены, спасибо! Мы свяжемся с вами.",
		"comment_saved": "Комментарий сохранён, спасибо!",
		"cancelled":     "Опрос отменён. Чтобы начать заново — /start",
		"stats_empty":   "Пока нет данных.",
		"stats_header":  "📊 Статистика по фидбэку",
		"stats_total":   "Всего ответов",
		"stats_q1":      "Время на регистрацию",
		"stats_q2":      "Средняя оценка статусов (1–10)",
		"stats_q5":      "Средний NPS (1–10)",
		"stats_words":   "Частые слова в свободных ответах",
		"selftest_ok":   "Запись в таблицу работает ✅",
		"selftest_fail": "Не удалось записать в таблицу ❌",
	},
	models.LocaleUZ: {
		"choose_lang": "Тилни танланг / Выберите язык",
		"hello": "Салом! Бу тест бот — автопрокат ҳамкорларига мўлжалланган.\n" +
			"Агрегаторни яхшилашга ёрдам беринг: 5 та қисқа савол (2–3 дақиқа).",
		"start_btn": "Сўровномани бошлаш",
		"cancel":    "Бекор қилиш",
		"thanks":    "Раҳмат! Жавоблар сақланди. 🎉",
		"err":       "Уй! Нимадир хато. Қайта /start қилинг.",
		"q1": "1/5. Рўйхатдан ўтиш ва биринчи машинани қўшишга қанча вақт кетди?\n\n" +
			"Вариантлар: <15 дақиқа / 15–30 дақиқа / >30 дақиқа",
		"q1_opt1":       "<15 дақиқа",
		"q1_opt2":       "15–30 дақиқа",
		"q1_opt3":       ">30 дақиқа",
		"q2":            "2/5. Аризалар статусклари ва хабарномалар қанчалик тушунарли?\n1–10 баҳоланг.",
		"q3":            "3/5. Нима ноқулай туюлди? (эркин жавоб)",
		"q4":            "4/5. Қайси функциялар етишмайди? (масалан: онлайн тўлов, нарх шаблонлари, импорт)",
		"q5":            "5/5. Ҳамкасбларга тавсия қиласизми? 1–10 баҳоланг.",
		"ask_company":   "Компания номини киритинг (TG/Instagram/ёки юр. ном)",
		"done":          "Тайёр ✅",
		"back":          "⬅️ Орқага",
		"skip":          "Ўтказиб юбориш",
		"post_offer":    "Алоқа учун контакт ёки изоҳ қолдирасизми?",
		"btn_contact":   "📞 Контакт қолдириш",
		"btn_comment":   "💬 Изоҳ қолдириш",
		"share_contact": "Контактни улашиш",
		"ask_contact":   "Қуйидаги тугма орқали контакт юборинг ёки исм ва телефонни ёзинг.",
		"ask_comment":   "Изоҳни битта хабар билан ёзинг.",
		"contact_saved": "Контактлар сақланди, раҳмат! Сиз билан боғланамиз.",
		"comment_saved": "Изоҳ сақланди, раҳмат!",
		"cancelled":     "Сўровнома бекор қилинди. Қайта бошлаш учун — /start",
		"stats_empty":   "Ҳозирча маълумот йўқ.",
		"stats_header":  "📊 Фидбэк статистикаси",
		"stats_total":   "Жами жавоблар",
		"stats_q1":      "Рўйхатдан ўтиш вақти",
		"stats_q2":      "Статуслар ўртача баҳоси (1–10)",
		"stats_q5":      "Ўртача NPS (1–10)",
		"stats_words":   "Эркин жавоблардаги кўп учрайдиган сўзлар",
		"selftest_ok":   "Жадвалга ёзиш ишлайди ✅",
		"selftest_fail": "Жадвалга ёзиб бўлмади ❌",
	},
}

// Text returns the localized string for key, falling back to the default
// locale and finally to the key itself.
func Text(loc models.Locale, key string) string {
	if m, ok := catalogue[loc]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	if loc != DefaultLocale {
		if s, ok := catalogue[DefaultLocale][key]; ok {
			slog.Debug("i18n falling back to default locale", "locale", loc, "key", key)
			return s
		}
	}
	slog.Warn("i18n key missing from catalogue", "locale", loc, "key", key)
	return key
}

// Locales returns the supported locales in presentation order.
func Locales() []models.Locale {
	return []models.Locale{models.LocaleRU, models.LocaleUZ}
}
